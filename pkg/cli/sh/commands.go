package sh

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/tmtc.go/pkg/l0/framer"
	"github.com/robotalks/tmtc.go/pkg/l1/comm/mqtt"
)

// WithLink wraps command func taking a link name as first argument.
func WithLink(fn func(c *ishell.Context, s *Shell, h framer.Handle)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if len(c.Args) < 1 {
			c.Err(fmt.Errorf("LINK required"))
			return
		}
		s := ShellFrom(c)
		h, err := s.Bench.Handle(c.Args[0])
		if err != nil {
			c.Err(err)
			return
		}
		fn(c, s, h)
	}
}

// FormatStatus prints Status into friendly string for display.
func FormatStatus(st framer.Status) string {
	return fmt.Sprintf("%s (port %d): %s read=%d expected=%d buffered=%d flushed=%d hdr_err=%d data_err=%d",
		st.Name, st.Transport, st.Step, st.ReadIdx, st.ExpectedSize, st.Buffered,
		st.FlushCount, st.WrongHeaderChecksumCount, st.WrongDataChecksumCount)
}

func intArg(args []string, n, def int) (int, error) {
	if len(args) <= n {
		return def, nil
	}
	v, err := strconv.ParseInt(args[n], 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", args[n], err)
	}
	return int(v), nil
}

var (
	// LinksCmd lists the links.
	LinksCmd = ishell.Cmd{
		Name:    "links",
		Aliases: []string{"l"},
		Help:    "list links and their decoding state",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			var statuses []framer.Status
			var lines []string
			for _, h := range s.Bench.Bank.Handles() {
				st := s.Bench.Bank.Status(h)
				statuses = append(statuses, st)
				lines = append(lines, FormatStatus(st))
			}
			s.Print(c, statuses, strings.Join(lines, "\n"))
		},
	}

	// FeedCmd injects raw bytes.
	FeedCmd = ishell.Cmd{
		Name:    "feed",
		Aliases: []string{"f"},
		Help:    "LINK HEX...",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			data, err := ParseBytes(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.Bench.Feed(h, data); err != nil {
				c.Err(err)
			}
		}),
	}

	// FrameCmd encodes a payload and injects the frame.
	FrameCmd = ishell.Cmd{
		Name:    "frame",
		Aliases: []string{"fr"},
		Help:    "LINK ROUTE PAYLOAD-HEX...",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			route, err := intArg(c.Args, 1, 0)
			if err != nil {
				c.Err(err)
				return
			}
			payload, err := ParseBytes(c.Args[2:])
			if err != nil {
				c.Err(err)
				return
			}
			frame, err := framer.AppendFrame(nil, byte(route), payload)
			if err != nil {
				c.Err(err)
				return
			}
			if err := s.Bench.Feed(h, frame); err != nil {
				c.Err(err)
				return
			}
			s.Print(c, frame, hex.EncodeToString(frame))
		}),
	}

	// UpdateCmd runs the decoder once.
	UpdateCmd = ishell.Cmd{
		Name:    "update",
		Aliases: []string{"u"},
		Help:    "LINK",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			s.Bench.Bank.Update(h)
			st := s.Bench.Bank.Status(h)
			s.Print(c, st, FormatStatus(st))
		}),
	}

	// TickCmd runs loop iterations which extract frames.
	TickCmd = ishell.Cmd{
		Name:    "tick",
		Aliases: []string{"t"},
		Help:    "[COUNT]",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			n, err := intArg(c.Args, 0, 1)
			if err != nil {
				c.Err(err)
				return
			}
			frames := s.Bench.Tick(n)
			lines := make([]string, len(frames))
			for i, f := range frames {
				lines[i] = f.Link + ": " + hex.EncodeToString(f.Data)
			}
			if len(lines) == 0 {
				lines = append(lines, "no frames")
			}
			s.Print(c, frames, strings.Join(lines, "\n"))
		},
	}

	// StatusCmd shows the state of a link.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "LINK",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			st := s.Bench.Bank.Status(h)
			s.Print(c, st, FormatStatus(st))
		}),
	}

	// CopyCmd extracts the ready frame into a buffer of given size.
	CopyCmd = ishell.Cmd{
		Name:    "copy",
		Aliases: []string{"cp"},
		Help:    "LINK [SIZE]",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			size, err := intArg(c.Args, 1, framer.MaxFrameSize)
			if err != nil || size < 0 {
				c.Err(fmt.Errorf("invalid SIZE"))
				return
			}
			out := make([]byte, size)
			n := s.Bench.Bank.CopyFrame(h, out)
			if n == 0 {
				s.Print(c, nil, "no frame copied")
				return
			}
			s.Print(c, out[:n], hex.EncodeToString(out[:n]))
		}),
	}

	// FlushCmd discards the buffered bytes of a link.
	FlushCmd = ishell.Cmd{
		Name:    "flush",
		Aliases: []string{"fl"},
		Help:    "LINK",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			s.Bench.Bank.Flush(h)
			st := s.Bench.Bank.Status(h)
			s.Print(c, st, FormatStatus(st))
		}),
	}

	// CountersCmd shows the published counters of a link.
	CountersCmd = ishell.Cmd{
		Name:    "counters",
		Aliases: []string{"c"},
		Help:    "LINK",
		Func: WithLink(func(c *ishell.Context, s *Shell, h framer.Handle) {
			values := s.Bench.ReadCounters(h)
			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			lines := make([]string, len(names))
			for i, name := range names {
				lines[i] = fmt.Sprintf("%s = %d", name, values[name])
			}
			s.Print(c, values, strings.Join(lines, "\n"))
		}),
	}

	// RemoteFlushCmd asks a running daemon to flush a link.
	RemoteFlushCmd = ishell.Cmd{
		Name:    "remote-flush",
		Aliases: []string{"rfl"},
		Help:    "LINK",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("LINK required"))
				return
			}
			q, err := ShellFrom(c).Remote()
			if err != nil {
				c.Err(err)
				return
			}
			token := q.Pub(mqtt.LinkTopic(c.Args[0], mqtt.TopicFlush), nil)
			if token.Wait() && token.Error() != nil {
				c.Err(token.Error())
				return
			}
			c.Println("OK")
		},
	}
)
