// Package resolver obtains image bytes and pixel sizes from user accessors
// under either the synchronous or the asynchronous execution contract.
package resolver

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/JJJJJJack/go-docx-image/internal/types"
)

// ImageGetter returns the image bytes for a tag value, or a future of them.
type ImageGetter func(tagValue any, tagName string) (any, error)

// SizeGetter returns the pixel size of img, or a future of it.
type SizeGetter func(img []byte, tagValue any, tagName string) (any, error)

// Strategy selects how accessor results that are futures are handled.
type Strategy int

const (
	// Immediate is the synchronous contract: futures are rejected.
	Immediate Strategy = iota
	// Suspend is the asynchronous contract: futures are awaited.
	Suspend
)

func (s Strategy) String() string {
	switch s {
	case Immediate:
		return "immediate"
	case Suspend:
		return "suspend"
	default:
		return "unknown"
	}
}

// settle turns an accessor result into a plain value according to s.
func (s Strategy) settle(ctx context.Context, op string, v any) (any, error) {
	aw, ok := v.(types.Awaitable)
	if !ok {
		return v, nil
	}

	if s == Immediate {
		return nil, types.NewTypeMismatchError(op, "accessor returned a future on the synchronous path")
	}

	settled, err := aw.AwaitAny(ctx)
	if err != nil {
		return nil, err
	}

	if _, nested := settled.(types.Awaitable); nested {
		return nil, types.NewTypeMismatchError(op, "future resolved to another future")
	}

	return settled, nil
}

type Resolver struct {
	GetImage ImageGetter
	GetSize  SizeGetter
	Strategy Strategy
}

// Image calls GetImage and validates the result. A nil or empty buffer
// yields (nil, nil), meaning there is no image to embed.
func (r *Resolver) Image(ctx context.Context, tagValue any, tagName string) ([]byte, error) {
	const op = "resolver.Image"

	raw, err := r.GetImage(tagValue, tagName)
	if err != nil {
		return nil, fmt.Errorf("%s: getImage failed: %w", op, err)
	}

	if raw, err = r.Strategy.settle(ctx, op, raw); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		return v, nil
	default:
		return nil, types.NewTypeMismatchError(op, fmt.Sprintf("getImage returned %T, want []byte", raw))
	}
}

// Size calls GetSize and validates that both dimensions are finite and
// strictly positive.
func (r *Resolver) Size(ctx context.Context, img []byte, tagValue any, tagName string) (types.Size, error) {
	const op = "resolver.Size"

	raw, err := r.GetSize(img, tagValue, tagName)
	if err != nil {
		return types.Size{}, fmt.Errorf("%s: getSize failed: %w", op, err)
	}

	if raw, err = r.Strategy.settle(ctx, op, raw); err != nil {
		return types.Size{}, err
	}

	size, ok := toSize(raw)
	if !ok {
		return types.Size{}, types.NewTypeMismatchError(op, fmt.Sprintf("getSize returned %T, want two numbers", raw))
	}

	if !validDimension(size.Width) || !validDimension(size.Height) {
		return types.Size{}, types.NewTypeMismatchError(op,
			fmt.Sprintf("invalid dimensions %vx%v", size.Width, size.Height))
	}

	return size, nil
}

func validDimension(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func toSize(v any) (types.Size, bool) {
	switch s := v.(type) {
	case types.Size:
		return s, true
	case *types.Size:
		if s == nil {
			return types.Size{}, false
		}
		return *s, true
	case image.Point:
		return types.Size{Width: float64(s.X), Height: float64(s.Y)}, true
	case [2]int:
		return types.Size{Width: float64(s[0]), Height: float64(s[1])}, true
	case [2]float64:
		return types.Size{Width: s[0], Height: s[1]}, true
	case []int:
		if len(s) != 2 {
			return types.Size{}, false
		}
		return types.Size{Width: float64(s[0]), Height: float64(s[1])}, true
	case []float64:
		if len(s) != 2 {
			return types.Size{}, false
		}
		return types.Size{Width: s[0], Height: s[1]}, true
	}

	return types.Size{}, false
}
