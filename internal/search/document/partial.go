package document

import (
	"errors"
	"fmt"
	"sort"
)

// PartialError is returned by bulk writes when the engine stored some
// layers and rejected others. Layers absent from Failed were written.
type PartialError struct {
	Total  int
	Failed map[int64]error // by layer id
}

// Fail records the rejection of layer id.
func (e *PartialError) Fail(id int64, err error) {
	if e.Failed == nil {
		e.Failed = map[int64]error{}
	}
	e.Failed[id] = err
}

// OrNil returns e when it holds a failure, nil otherwise.
func (e *PartialError) OrNil() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	return e
}

func (e *PartialError) Error() string {
	ids := make([]int64, 0, len(e.Failed))
	for id := range e.Failed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	msg := fmt.Sprintf("%d of %d layers rejected", len(ids), e.Total)
	for i, id := range ids {
		if i == 3 {
			msg += fmt.Sprintf("; and %d more", len(ids)-i)
			break
		}
		msg += fmt.Sprintf("; layer %d: %v", id, e.Failed[id])
	}
	return msg
}

func (e *PartialError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failed))
	for _, err := range e.Failed {
		errs = append(errs, err)
	}
	return errs
}

// AsPartial extracts a *PartialError from err.
func AsPartial(err error) (*PartialError, bool) {
	var pe *PartialError
	ok := errors.As(err, &pe)
	return pe, ok
}
