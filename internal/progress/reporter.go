package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cwygoda/nftfolder/internal/domain"
)

const prefix = "[nftfolder]"

// Options configures the progress reporter.
type Options struct {
	// Output is where progress lines go. Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often the line is redrawn. Default: 500ms
	UpdateInterval time.Duration

	// Buffer is the capacity of the byte progress channel. Default: 64
	Buffer int
}

// Reporter prints a single refreshing progress line.
type Reporter struct {
	opts Options

	discovered atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	saved      atomic.Int64

	mu       sync.Mutex
	inFlight map[string]int64
	finished map[string]struct{}

	progress  chan domain.ByteProgress
	stopCh    chan struct{}
	done      chan struct{}
	stopOnce  sync.Once
	startTime time.Time
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval <= 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}

	return &Reporter{
		opts:     opts,
		inFlight: make(map[string]int64),
		finished: make(map[string]struct{}),
		progress: make(chan domain.ByteProgress, opts.Buffer),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins redrawing the progress line.
func (r *Reporter) Start() {
	r.startTime = time.Now()
	go r.updateLoop()
}

// Stop prints the final line and waits for the redraw loop to exit.
// It is safe to call more than once, and a no-op before Start.
func (r *Reporter) Stop() {
	if r.startTime.IsZero() {
		return
	}
	r.stopOnce.Do(func() { close(r.stopCh) })
	<-r.done
}

// Discovered counts a scheduled record.
func (r *Reporter) Discovered() {
	r.discovered.Add(1)
}

// Completed counts a resolved record.
func (r *Reporter) Completed(o domain.Outcome) {
	r.completed.Add(1)
	switch o.Kind {
	case domain.OutcomeFailed:
		r.failed.Add(1)
	case domain.OutcomeSaved:
		r.saved.Add(o.Bytes)
	}

	r.mu.Lock()
	delete(r.inFlight, o.Name)
	r.finished[o.Name] = struct{}{}
	r.mu.Unlock()
}

// LocatorFailed counts a record that never reached a fetcher.
func (r *Reporter) LocatorFailed(o domain.Outcome) {
	r.failed.Add(1)
}

// Progress returns the channel fetchers offer byte updates to.
// It is never closed.
func (r *Reporter) Progress() chan<- domain.ByteProgress {
	return r.progress
}

func (r *Reporter) updateLoop() {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinal()
			return
		case p := <-r.progress:
			r.track(p)
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) track(p domain.ByteProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	// Updates can arrive after the outcome.
	if _, ok := r.finished[p.Name]; ok {
		return
	}
	r.inFlight[p.Name] = p.Done
}

// snapshot returns the active transfer count and the bytes written so far.
func (r *Reporter) snapshot() (active int, written int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	written = r.saved.Load()
	for _, done := range r.inFlight {
		written += done
	}
	return len(r.inFlight), written
}

func (r *Reporter) printProgress() {
	active, written := r.snapshot()
	fmt.Fprintf(r.opts.Output, "\r%s %d/%d completed | %d failed | %d active | %s    ",
		prefix,
		r.completed.Load(),
		r.discovered.Load(),
		r.failed.Load(),
		active,
		humanize.IBytes(uint64(written)),
	)
}

func (r *Reporter) printFinal() {
	elapsed := time.Since(r.startTime).Round(time.Second)
	fmt.Fprintf(r.opts.Output, "\r%s %d/%d completed | %d failed | %s in %s    \n",
		prefix,
		r.completed.Load(),
		r.discovered.Load(),
		r.failed.Load(),
		humanize.IBytes(uint64(r.saved.Load())),
		elapsed,
	)
}
