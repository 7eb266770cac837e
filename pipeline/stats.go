package pipeline

import (
	"time"

	"github.com/opd-ai/framecast/codec"
	"github.com/opd-ai/framecast/params"
	"github.com/opd-ai/framecast/transport"
)

// Stats is a snapshot of the stream, served by the control channel.
type Stats struct {
	SessionID       string          `json:"session_id"`
	State           string          `json:"state"`
	Width           int             `json:"width"`
	Height          int             `json:"height"`
	SourceFormat    string          `json:"source_format"`
	FrameRate       int             `json:"frame_rate"`
	OutputFrameRate int             `json:"output_frame_rate"`
	KeyIntMax       int             `json:"keyint_max"`
	Submitted       uint64          `json:"submitted"`
	Dropped         uint64          `json:"dropped"`
	Frames          int64           `json:"frames"`
	PTS             int64           `json:"pts"`
	UptimeSeconds   float64         `json:"uptime_seconds"`
	Transport       transport.Stats `json:"transport"`
	Error           string          `json:"error,omitempty"`
}

// Stats returns a snapshot of the counters. It takes no pipeline lock, so
// finished handlers may call it. The session fields wait for a frame that
// is being encoded to complete.
func (p *Pipeline) Stats() Stats {
	st := Stats{
		State:           codec.StateUnopened.String(),
		Width:           p.cfg.Width,
		Height:          p.cfg.Height,
		SourceFormat:    p.cfg.SourceFormat.String(),
		FrameRate:       p.cfg.FrameRate,
		OutputFrameRate: params.OutputFrameRate(p.cfg.FrameRate, p.cfg.FrameMultiplier),
		Submitted:       p.submitted.Load(),
		Dropped:         p.dropped.Load(),
	}

	if session := p.session.Load(); session != nil {
		st.SessionID = session.ID()
		st.State = session.State().String()
		st.Frames = session.FrameCount()
		st.PTS = session.PTS()
		st.KeyIntMax = session.Params().KeyIntMax
	}
	if since := p.since.Load(); since > 0 {
		st.UptimeSeconds = time.Since(time.Unix(0, since)).Seconds()
	}
	if sender, ok := p.out.Load().(Sender); ok {
		st.Transport = sender.Stats()
	}
	if err := p.Err(); err != nil {
		st.Error = err.Error()
	}
	return st
}
