package report

import (
	"fmt"
	"io"
	"time"

	"github.com/hugolhafner/go-offsets/inspector"
)

// Timestamps carry microseconds unless they fall on a whole second.
const (
	TimestampLayout       = "2006-01-02 15:04:05.000000"
	WholeSecondTimeLayout = "2006-01-02 15:04:05"
)

// Printer writes one human readable line per inspection result
type Printer struct {
	w   io.Writer
	loc *time.Location
}

type Option func(*Printer)

// WithLocation sets the zone timestamps are rendered in. Defaults to time.Local.
func WithLocation(loc *time.Location) Option {
	return func(p *Printer) {
		if loc != nil {
			p.loc = loc
		}
	}
}

func NewPrinter(w io.Writer, opts ...Option) *Printer {
	p := &Printer{w: w, loc: time.Local}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Line renders r without a trailing newline.
func (p *Printer) Line(r inspector.Result) string {
	switch r.Status {
	case inspector.StatusLatest:
		return fmt.Sprintf(
			"Partition: %d, Latest Offset: %d, Timestamp: %s",
			r.Partition, r.Offset, p.timestamp(r.Timestamp),
		)
	case inspector.StatusNoRecordAtLatest:
		return fmt.Sprintf("Partition: %d, No messages found at the latest offset.", r.Partition)
	case inspector.StatusEmptyPartition:
		return fmt.Sprintf("Partition: %d, No messages found in the partition.", r.Partition)
	case inspector.StatusTopicNotFound:
		return fmt.Sprintf("Topic %s does not exist or has no partitions.", r.Topic)
	default:
		return fmt.Sprintf("Partition: %d, Error: %v", r.Partition, r.Err)
	}
}

func (p *Printer) timestamp(ts time.Time) string {
	ts = ts.In(p.loc)
	if ts.Nanosecond()/int(time.Microsecond) == 0 {
		return ts.Format(WholeSecondTimeLayout)
	}
	return ts.Format(TimestampLayout)
}

func (p *Printer) Print(r inspector.Result) error {
	if _, err := fmt.Fprintln(p.w, p.Line(r)); err != nil {
		return fmt.Errorf("write result for partition %d: %w", r.Partition, err)
	}
	return nil
}
