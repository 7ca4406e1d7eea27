package multidb

import (
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
)

type MultiDB interface {
	GetSqlx(driver Driver, label string) (*sqlx.DB, error)
	io.Closer
}

type namedCloser struct {
	name   string
	closer io.Closer
}

func (d *namedCloser) Close() error {
	err := d.closer.Close()
	if err != nil {
		err = fmt.Errorf("(%s) %w", d.name, err)
	}

	return err
}
