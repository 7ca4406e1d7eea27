package container

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"
)

// Closer is a resource that knows its name, so shutdown errors say what failed.
type Closer interface {
	io.Closer

	Name() string
}

// onceCloser closes the wrapped resource at most once, later calls return the first result.
type onceCloser struct {
	name   string
	closer io.Closer

	once sync.Once
	err  error
}

var _ Closer = (*onceCloser)(nil)

func NewNamedCloser(name string, closer io.Closer) Closer {
	return &onceCloser{
		name:   name,
		closer: closer,
	}
}

func (c *onceCloser) Close() error {
	c.once.Do(func() {
		if c.closer == nil {
			return
		}

		c.err = c.closer.Close()
	})

	return c.err
}

func (c *onceCloser) Name() string {
	return c.name
}

// CloseAll closes in the given order and keeps going on failure.
func CloseAll(closers ...Closer) error {
	var err error
	for _, closer := range closers {
		if closer == nil {
			continue
		}

		if _err := closer.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close %s error: %w", closer.Name(), _err))
		}
	}

	return err
}
