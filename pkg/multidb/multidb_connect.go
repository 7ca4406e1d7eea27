package multidb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/yusufsyaifudin/emailer/pkg/validator"
	"go.uber.org/multierr"
)

type SqlDbConnMakerConfig struct {
	Ctx    context.Context   `validate:"required"`
	Config DatabaseResources `validate:"required"`
}

type SqlDbConnMaker struct {
	conf     DatabaseResources
	disabled map[string]struct{}
	dbSQL    map[string]*sqlx.DB
	dbDriver map[string]Driver
	closer   []*namedCloser
}

var _ MultiDB = (*SqlDbConnMaker)(nil)

// NewSqlDbConnMaker opens and pings every enabled database.
// When one of them fails, all previously opened connections are closed.
func NewSqlDbConnMaker(conf SqlDbConnMakerConfig) (*SqlDbConnMaker, error) {
	err := validator.Validate(conf)
	if err != nil {
		err = fmt.Errorf("sql db connection maker failed: %w", err)
		return nil, err
	}

	instance := &SqlDbConnMaker{
		conf:     conf.Config,
		disabled: make(map[string]struct{}),
		dbSQL:    make(map[string]*sqlx.DB),
		dbDriver: make(map[string]Driver),
		closer:   make([]*namedCloser, 0),
	}

	err = instance.connect(conf.Ctx)
	if err != nil {
		if _err := instance.Close(); _err != nil {
			err = multierr.Append(err, fmt.Errorf("close db sql error: %w", _err))
		}

		return nil, err
	}

	return instance, nil
}

func (i *SqlDbConnMaker) GetSqlx(driver Driver, label string) (*sqlx.DB, error) {
	label = strings.TrimSpace(strings.ToLower(label))
	if _, exists := i.disabled[label]; exists {
		return nil, fmt.Errorf("db with label '%s' is disabled", label)
	}

	dbConnection, ok := i.dbSQL[label]
	if !ok {
		return nil, fmt.Errorf("label '%s' is not exist on db list", label)
	}

	registeredDriver, ok := i.dbDriver[label]
	if ok && driver == registeredDriver {
		return dbConnection, nil
	}

	return nil, fmt.Errorf("db label '%s' not using driver %s", label, driver)
}

func (i *SqlDbConnMaker) Close() error {
	var err error
	for _, c := range i.closer {
		if c == nil {
			continue
		}

		err = multierr.Append(err, c.Close())
	}

	return err
}

func (i *SqlDbConnMaker) connect(ctx context.Context) error {
	for dbLabel, dbConfig := range i.conf {
		dbLabel = strings.TrimSpace(strings.ToLower(dbLabel))
		if err := validator.Var(dbLabel, "required,alphanum"); err != nil {
			err = fmt.Errorf("error connecting to database label '%s': %w", dbLabel, err)
			return err
		}

		if dbConfig.Disable {
			i.disabled[dbLabel] = struct{}{}
			continue
		}

		var sqlxConn *sqlx.DB

		switch dbConfig.Driver {
		case Postgres:
			driver := dbConfig.Driver.String()
			dsn := dbConfig.Postgres.DSN

			db, err := sql.Open(driver, dsn)
			if err != nil {
				err = fmt.Errorf("cannot open db connection '%s': %w", dbLabel, err)
				return err
			}

			if dbConfig.Postgres.Debug {
				db = sqldblogger.OpenDriver(dsn, db.Driver(), &QueryLogger{},
					sqldblogger.WithConnectionIDFieldname(dbLabel),
					sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
				)
			}

			if dbConfig.Postgres.MaxOpenConns > 0 {
				db.SetMaxOpenConns(dbConfig.Postgres.MaxOpenConns)
			}

			if dbConfig.Postgres.MaxIdleConns > 0 {
				db.SetMaxIdleConns(dbConfig.Postgres.MaxIdleConns)
			}

			sqlxConn = sqlx.NewDb(db, driver)

		default:
			return fmt.Errorf("not supported driver '%s' on label '%s'", dbConfig.Driver, dbLabel)
		}

		// register closer before ping, so failed ping still closes the pool
		i.closer = append(i.closer, &namedCloser{name: dbLabel, closer: sqlxConn})

		if err := sqlxConn.PingContext(ctx); err != nil {
			err = fmt.Errorf("error ping database %s: %w", dbLabel, err)
			return err
		}

		i.dbSQL[dbLabel] = sqlxConn
		i.dbDriver[dbLabel] = dbConfig.Driver
	}

	return nil
}
