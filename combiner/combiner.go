package combiner

import (
	"strings"

	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// Kind is the reduction applied to the values matched for one document.
type Kind uint8

const (
	Sum Kind = iota
	Mean
	Min
	Max
	Count
)

var kindNames = [...]string{
	Sum:   "sum",
	Mean:  "mean",
	Min:   "min",
	Max:   "max",
	Count: "count",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	if s == "avg" {
		return Mean, nil
	}
	return Sum, errors.Wrapf(errs.ErrInvalidOption, "combiner %q", s)
}

// Combiner folds the values collected for one dimension.
type Combiner struct {
	kind  Kind
	acc   float64
	count int
}

func New(kind Kind) *Combiner {
	return &Combiner{kind: kind}
}

func (c *Combiner) Collect(v float64) {
	c.count++
	switch c.kind {
	case Sum, Mean:
		c.acc += v
	case Min:
		if c.count == 1 || v < c.acc {
			c.acc = v
		}
	case Max:
		if c.count == 1 || v > c.acc {
			c.acc = v
		}
	}
}

// Get returns the folded value. Mean of nothing is 0; Min and Max of
// nothing are 0 as well.
func (c *Combiner) Get() float64 {
	switch c.kind {
	case Mean:
		if c.count == 0 {
			return 0
		}
		return c.acc / float64(c.count)
	case Count:
		return float64(c.count)
	}
	return c.acc
}

// Count is the number of collected values.
func (c *Combiner) Count() int {
	return c.count
}

func (c *Combiner) Kind() Kind {
	return c.kind
}

func (c *Combiner) Reset() {
	c.acc = 0
	c.count = 0
}
