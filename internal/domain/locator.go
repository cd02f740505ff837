package domain

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultGateway serves content-addressed references over HTTPS.
	DefaultGateway = "ipfs.io"
	// DefaultMaxExtension bounds extensions inferred from a URL path.
	DefaultMaxExtension = 5

	svgDataPrefix = "data:image/svg+xml;base64,"
	maxNameBytes  = 200
)

// Asset is a located, fetchable image for a record.
type Asset struct {
	Name      string // sanitized, without extension
	FileName  string
	URL       string // fetch URL, or the base64 payload when Inline
	Extension string
	Inline    bool
}

// WithSuffix returns the asset renamed to "{name} #{suffix}". The name is
// shortened first so the suffix survives the length limit.
func (a Asset) WithSuffix(suffix string) Asset {
	tail := " #" + suffix
	a.Name = SanitizeName(truncate(a.Name, maxNameBytes-len(tail)) + tail)
	a.FileName = a.Name + "." + a.Extension
	return a
}

// Locator derives fetch URLs and file names from records.
type Locator struct {
	Gateway      string
	MaxExtension int
}

// NewLocator returns a locator; zero values select the defaults.
func NewLocator(gateway string, maxExtension int) *Locator {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if maxExtension <= 0 {
		maxExtension = DefaultMaxExtension
	}
	return &Locator{Gateway: gateway, MaxExtension: maxExtension}
}

// Locate resolves the record's image descriptor into an Asset.
// Errors are *LocatorError values wrapping one of the locator sentinels.
func (l *Locator) Locate(rec Record) (Asset, error) {
	name := DisplayName(rec)
	if name == "" {
		return Asset{}, &LocatorError{Err: ErrMissingName}
	}

	var rawURL, mime string
	switch img := rec.Image.(type) {
	case URLImage:
		rawURL = img.URL
	case DescribedImage:
		rawURL, mime = img.URL, img.MimeType
	case AbsentImage, nil:
		return Asset{}, &LocatorError{Name: name, Err: ErrNoImageData}
	}
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Asset{}, &LocatorError{Name: name, Err: ErrNoImageData}
	}

	base := SanitizeName(name)

	if strings.HasPrefix(rawURL, "data:image/svg") {
		return Asset{
			Name:      base,
			FileName:  base + ".svg",
			URL:       strings.TrimPrefix(rawURL, svgDataPrefix),
			Extension: "svg",
			Inline:    true,
		}, nil
	}
	if strings.HasPrefix(rawURL, "data:") {
		return Asset{}, &LocatorError{Name: name, Err: ErrNotAnImage}
	}

	fetchURL := rawURL
	if strings.HasPrefix(rawURL, "ipfs") {
		hash, ok := contentHash(rawURL)
		if !ok {
			return Asset{}, &LocatorError{Name: name, Err: ErrGatewayHashNotFound}
		}
		fetchURL = "https://" + l.Gateway + "/ipfs/" + hash
	}

	ext, err := l.extension(rawURL, mime)
	if err != nil {
		return Asset{}, &LocatorError{Name: name, Err: err}
	}

	return Asset{
		Name:      base,
		FileName:  base + "." + ext,
		URL:       fetchURL,
		Extension: ext,
	}, nil
}

func (l *Locator) extension(rawURL, mime string) (string, error) {
	if mime = strings.TrimSpace(mime); mime != "" {
		if i := strings.IndexByte(mime, ';'); i >= 0 {
			mime = mime[:i]
		}
		sub := strings.ToLower(strings.TrimSpace(mime[strings.LastIndexByte(mime, '/')+1:]))
		if sub == "" {
			return "", ErrNoSuitableExtension
		}
		return sub, nil
	}

	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		// A bare host has no file to take an extension from.
		p = u.Path
	} else if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	segment := p[strings.LastIndexByte(p, '/')+1:]
	dot := strings.LastIndexByte(segment, '.')
	if dot < 0 {
		return "", ErrNoSuitableExtension
	}
	ext := strings.ToLower(segment[dot+1:])
	if ext == "" || len(ext) > l.MaxExtension {
		return "", ErrNoSuitableExtension
	}
	return ext, nil
}

// contentHash returns the first path segment that looks like a CIDv0.
func contentHash(ref string) (string, bool) {
	for _, part := range strings.Split(ref, "/") {
		if strings.HasPrefix(part, "Qm") {
			return part, true
		}
	}
	return "", false
}

// DisplayName returns the record's name, falling back to
// "{collection} #{token}" when the API omitted it.
func DisplayName(rec Record) string {
	if name := strings.TrimSpace(rec.Name); name != "" {
		return name
	}
	collection := strings.TrimSpace(rec.CollectionName)
	token := strings.TrimSpace(rec.TokenID)
	if collection != "" && token != "" {
		return collection + " #" + token
	}
	return ""
}

// SanitizeName makes a remote name safe to use as a single file name.
func SanitizeName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, strings.TrimSpace(name))

	if strings.Trim(name, ".") == "" {
		name = strings.Repeat("_", len(name))
	}
	name = truncate(name, maxNameBytes)
	if name == "" {
		name = "_"
	}
	return name
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
