package nn

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/seggen/internal/tensor"
)

// State dict errors.
var (
	ErrMissingKeys    = errors.New("missing keys in state dict")
	ErrUnexpectedKeys = errors.New("unexpected keys in state dict")
	ErrShapeMismatch  = errors.New("state dict shape mismatch")
	ErrDuplicateName  = errors.New("duplicate parameter name")
)

// StateDict returns a map of parameter names to raw tensors.
//
// The tensors are shared with the parameters, not copied.
func StateDict[B tensor.Backend](params []*Parameter[B]) map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor, len(params))
	for _, p := range params {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict copies tensors from stateDict into params.
//
// Loading is strict: every parameter must be present with the exact shape,
// and stateDict must not contain keys that match no parameter. float64
// tensors are narrowed to float32. No parameter is modified unless the whole
// dict validates.
func LoadStateDict[B tensor.Backend](params []*Parameter[B], stateDict map[string]*tensor.RawTensor) error {
	byName := make(map[string]*Parameter[B], len(params))
	for _, p := range params {
		if _, dup := byName[p.Name()]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateName, p.Name())
		}
		byName[p.Name()] = p
	}

	var missing, unexpected []string
	var errs []error
	for _, p := range params {
		raw, ok := stateDict[p.Name()]
		if !ok {
			missing = append(missing, p.Name())
			continue
		}
		if want := p.Tensor().Shape(); !raw.Shape().Equal(want) {
			errs = append(errs, fmt.Errorf("%w: %s: expected %v, got %v", ErrShapeMismatch, p.Name(), want, raw.Shape()))
		}
	}
	for name := range stateDict {
		if _, ok := byName[name]; !ok {
			unexpected = append(unexpected, name)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)
		errs = append(errs, fmt.Errorf("%w: %s", ErrMissingKeys, strings.Join(missing, ", ")))
	}
	if len(unexpected) > 0 {
		slices.Sort(unexpected)
		errs = append(errs, fmt.Errorf("%w: %s", ErrUnexpectedKeys, strings.Join(unexpected, ", ")))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	for _, p := range params {
		if err := copyInto(p.Tensor().Data(), stateDict[p.Name()]); err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
	}
	return nil
}

func copyInto(dst []float32, raw *tensor.RawTensor) error {
	switch raw.DType() {
	case tensor.Float32:
		copy(dst, raw.AsFloat32())
	case tensor.Float64:
		for i, v := range raw.AsFloat64() {
			dst[i] = float32(v)
		}
	default:
		return fmt.Errorf("unsupported dtype %s", raw.DType())
	}
	return nil
}
