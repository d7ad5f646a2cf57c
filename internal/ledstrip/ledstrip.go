package ledstrip

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"libdb.so/pulseglow/internal/lights"
)

// Strip is an addressable strip behind a serial port. Segments of it act as
// logical lights; every segment write flushes the whole frame.
type Strip struct {
	logger *slog.Logger
	port   serial.Port

	mu    sync.Mutex
	frame Frame
}

// Open opens the serial port and initializes the firmware for numPixels.
func Open(device string, baud, numPixels int, logger *slog.Logger) (*Strip, error) {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	s := &Strip{
		logger: logger,
		port:   port,
		frame:  NewFrame(numPixels),
	}

	if err := WriteCommand(port, InitCommand{NumPixels: uint16(numPixels)}); err != nil {
		port.Close()
		return nil, errors.Wrap(err, "failed to initialize strip")
	}
	return s, nil
}

// Close blanks the strip and closes the port.
func (s *Strip) Close() error {
	s.mu.Lock()
	werr := WriteCommand(s.port, ClearCommand{})
	s.mu.Unlock()

	cerr := s.port.Close()
	if werr != nil {
		return werr
	}
	return cerr
}

// ReadReplies consumes firmware replies until the context is canceled or
// the port dies. Faults end the loop with an error; acks and logs are only
// logged.
func (s *Strip) ReadReplies(ctx context.Context) error {
	if err := s.port.SetReadTimeout(serial.NoTimeout); err != nil {
		return errors.Wrap(err, "failed to reset read timeout")
	}
	return s.readReplies(ctx, s.port)
}

func (s *Strip) readReplies(ctx context.Context, r io.Reader) error {
	for ctx.Err() == nil {
		reply, err := ReadReply(r)
		if err != nil {
			// Close during shutdown surfaces as a read error here.
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, io.EOF) {
				return errors.Wrap(err, "serial port closed")
			}
			return errors.Wrap(err, "failed to read reply")
		}

		switch reply := reply.(type) {
		case AckReply:
			s.logger.Debug("strip acked", "command", reply.Acked)
		case FaultReply:
			s.logger.Error("strip reported fault", "message", reply.Message)
			return errors.New("strip fault: " + reply.Message)
		case LogReply:
			s.logger.Info("strip log", "message", reply.Message)
		}
	}
	return ctx.Err()
}

// Segment exposes the pixel range [start, end) as one logical light.
func (s *Strip) Segment(name string, start, end int) *Segment {
	return &Segment{strip: s, name: name, start: start, end: end}
}

// paint updates a pixel range and flushes the frame.
func (s *Strip) paint(start, end int, c RGB) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame.SetRange(start, end, c)
	return WriteCommand(s.port, ShowCommand{Pix: s.frame.Pixels()})
}

// Segment is one pixel range of a strip. It implements the device boundary
// the effect loops emit into.
type Segment struct {
	strip *Strip
	name  string
	start int
	end   int
}

var _ lights.Device = (*Segment)(nil)

// Label implements lights.Device.
func (g *Segment) Label() string { return g.name }

// SetColor implements lights.Device. The strip firmware has no fade engine,
// so the target color is applied immediately and the fade duration is
// dropped.
func (g *Segment) SetColor(ctx context.Context, c lights.Color, fade time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return err
	}
	return g.strip.paint(g.start, g.end, fromHSBK(c))
}

// SetPower implements lights.Device. Power off paints the segment black;
// power on restores nothing, the next SetColor does.
func (g *Segment) SetPower(ctx context.Context, on bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if on {
		return nil
	}
	return g.strip.paint(g.start, g.end, RGB{})
}
