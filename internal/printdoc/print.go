package printdoc

import (
	"context"
	"errors"
	"fmt"
	"time"

	appLog "cmscal/internal/log"
)

// UnavailableWarning is shown to the user when no surface can be opened.
const UnavailableWarning = "Please allow pop-ups to print the events."

// ErrSurfaceUnavailable is matched by errors.Is for any failure to obtain
// an output surface.
var ErrSurfaceUnavailable = errors.New("printdoc: print surface unavailable")

// UnavailableError carries the user-facing warning for a surface that could
// not be opened.
type UnavailableError struct {
	Warning string
	Err     error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return ErrSurfaceUnavailable.Error()
	}
	return ErrSurfaceUnavailable.Error() + ": " + e.Err.Error()
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrSurfaceUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Surface is an output target that accepts one document, prints it and is
// closed afterwards.
type Surface interface {
	Write(ctx context.Context, doc []byte) error
	// Print triggers the print interaction and returns a reference to the
	// printed output (a file path, or "" when the host keeps it).
	Print(ctx context.Context) (string, error)
	Close() error
}

// SurfaceProvider hands out fresh surfaces.
type SurfaceProvider interface {
	Open(ctx context.Context) (Surface, error)
}

// Print opens a surface, writes doc, triggers printing and closes the
// surface closeDelay later. The close is not cancellable and there is no
// retry. If no surface can be opened an *UnavailableError is returned and
// nothing else happens.
func Print(ctx context.Context, provider SurfaceProvider, doc []byte, closeDelay time.Duration) (string, error) {
	if provider == nil {
		return "", &UnavailableError{Warning: UnavailableWarning}
	}

	s, err := provider.Open(ctx)
	if err != nil {
		appLog.Warn("print surface unavailable", "err", err)
		return "", &UnavailableError{Warning: UnavailableWarning, Err: err}
	}

	if err := s.Write(ctx, doc); err != nil {
		closeSurface(s)
		return "", fmt.Errorf("printdoc: write: %w", err)
	}

	ref, err := s.Print(ctx)
	if err != nil {
		closeSurface(s)
		return "", fmt.Errorf("printdoc: print: %w", err)
	}

	time.AfterFunc(closeDelay, func() { closeSurface(s) })

	appLog.Info("print triggered", "bytes", len(doc), "output", ref)
	return ref, nil
}

func closeSurface(s Surface) {
	if err := s.Close(); err != nil {
		appLog.Error("print surface close failed", err)
	}
}
