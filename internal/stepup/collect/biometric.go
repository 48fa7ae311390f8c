package collect

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/stepup/internal/stepup/domain"
	"github.com/aussiebroadwan/stepup/pkg/slogx"
)

// ErrCameraBusy reports that another collector currently holds the camera.
var ErrCameraBusy = errors.New("collect: camera already in use")

// Camera is the boundary to the capture hardware. The implementation (and
// any live preview it renders) lives outside this module; only the captured
// still frame is consumed here.
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an open camera stream. Close releases the device and must be
// called on every exit path; it is safe to call more than once.
type Stream interface {
	// Capture blocks until a single still frame is taken (the trigger is
	// the implementation's concern, e.g. a shutter button) and returns the
	// raw frame bytes.
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// device serializes access to the single camera: at most one open stream at
// a time across all collectors.
var device = make(chan struct{}, 1)

// BiometricCollector opens the camera, captures one still frame, and
// releases the device. The stream is closed on every path out of Collect —
// successful capture, capture failure, and context cancellation alike.
type BiometricCollector struct {
	Camera Camera
}

func (c *BiometricCollector) Kind() domain.FactorKind { return domain.FactorBiometricImage }

func (c *BiometricCollector) Collect(ctx context.Context) (domain.VerificationFactor, error) {
	select {
	case device <- struct{}{}:
	default:
		return domain.VerificationFactor{}, fmt.Errorf("%w: %w", ErrAcquisitionFailed, ErrCameraBusy)
	}
	defer func() { <-device }()

	stream, err := c.Camera.Open(ctx)
	if err != nil {
		return domain.VerificationFactor{}, fmt.Errorf("%w: open camera: %w", ErrAcquisitionFailed, err)
	}
	defer stream.Close()

	frame, err := c.capture(ctx, stream)
	if err != nil {
		return domain.VerificationFactor{}, err
	}
	if len(frame) == 0 {
		return domain.VerificationFactor{}, fmt.Errorf("%w: empty frame captured", ErrAcquisitionFailed)
	}
	slogx.FromContext(ctx).Debug("frame captured", "bytes", len(frame))
	return domain.BiometricFactor(frame), nil
}

// capture waits for a frame or for cancellation, whichever comes first. On
// cancellation the stream is closed immediately so the device is not held
// for the remainder of a blocked Capture call.
func (c *BiometricCollector) capture(ctx context.Context, stream Stream) ([]byte, error) {
	type result struct {
		frame []byte
		err   error
	}
	ch := make(chan result, 1)

	go func() {
		frame, err := stream.Capture(ctx)
		ch <- result{frame: frame, err: err}
	}()

	select {
	case <-ctx.Done():
		_ = stream.Close()
		return nil, fmt.Errorf("%w: capture canceled: %w", ErrAcquisitionFailed, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%w: capture: %w", ErrAcquisitionFailed, res.err)
		}
		return res.frame, nil
	}
}
