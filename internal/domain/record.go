package domain

// Record is one asset discovered from the owner listing.
type Record struct {
	NFTID           string
	Chain           string
	ContractAddress string
	TokenID         string
	Name            string
	CollectionName  string
	Image           ImageDescriptor
}

// ImageDescriptor describes where a record's image lives.
// It is one of AbsentImage, URLImage or DescribedImage.
type ImageDescriptor interface {
	imageDescriptor()
}

// AbsentImage means the API returned no image data for the record.
type AbsentImage struct{}

// URLImage is a bare image reference without metadata.
type URLImage struct {
	URL string
}

// DescribedImage is an image reference with optional size and MIME type.
type DescribedImage struct {
	URL      string
	Size     int64
	MimeType string
}

func (AbsentImage) imageDescriptor()    {}
func (URLImage) imageDescriptor()       {}
func (DescribedImage) imageDescriptor() {}

// Cursor is the opaque pagination token handed out by the API.
// The empty cursor requests the first page.
type Cursor string
