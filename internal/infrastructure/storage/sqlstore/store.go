// Package sqlstore persists materialized graphs through database/sql. It runs
// against PostgreSQL (through the pgx stdlib bridge) and SQLite.
package sqlstore

import (
	"context"
	"database/sql/driver"
	"fmt"
	"reflect"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"

	"seedgraph/internal/core/apperror"
	"seedgraph/internal/domain/persist"
	"seedgraph/internal/metadata"
)

// Dialect selects placeholder format and driver quirks.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func (d Dialect) placeholders() squirrel.PlaceholderFormat {
	if d == SQLite {
		return squirrel.Question
	}
	return squirrel.Dollar
}

// Compile-time check that Store implements persist.Sink interface.
var _ persist.Sink = (*Store)(nil)

// Store writes instances using their descriptors: scalar columns come from
// `db` tags, reference columns from the identity of the referenced instance.
type Store struct {
	txm     *TxManager
	dialect Dialect
}

// New creates a store. Statements run in the transaction carried by ctx, if any.
func New(txm *TxManager, dialect Dialect) *Store {
	return &Store{txm: txm, dialect: dialect}
}

// TxManager returns the transaction manager the store reads its querier from.
func (s *Store) TxManager() *TxManager { return s.txm }

// Builder returns a new squirrel builder with the dialect's placeholder format.
func (s *Store) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(s.dialect.placeholders())
}

// HasIdentity implements persist.Sink.
func (s *Store) HasIdentity(d *metadata.Descriptor, instance reflect.Value) bool {
	_, ok := persist.IdentityOf(d, instance)
	return ok
}

// Insert implements persist.Sink. UUID and text identities are generated
// before the insert; integer identities are read back with RETURNING.
func (s *Store) Insert(ctx context.Context, d *metadata.Descriptor, instance reflect.Value) error {
	idEl := d.Identity()
	if idEl == nil {
		return apperror.NewConfiguration(d.Name(), "entity has no identity element")
	}
	idCol := identityColumn(idEl)

	data, err := s.columns(d, instance)
	if err != nil {
		return err
	}

	querier := s.txm.GetQuerier(ctx)
	if isInteger(metadata.Indirect(idEl.Type())) {
		query, args, err := s.insertReturning(d.TableName(), idCol, data)
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}
		var newID int64
		if err := sqlscan.Get(ctx, querier, &newID, query, args...); err != nil {
			return fmt.Errorf("insert %s: %w", d.TableName(), err)
		}
		_, err = persist.AssignIdentity(d, instance, newID)
		return err
	}

	value, err := persist.AssignIdentity(d, instance, 0)
	if err != nil {
		return err
	}
	data[idCol] = value

	query, args, err := s.Builder().Insert(d.TableName()).SetMap(data).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := querier.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert %s: %w", d.TableName(), err)
	}
	return nil
}

func (s *Store) insertReturning(table, idCol string, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", table, idCol), nil, nil
	}
	return s.Builder().Insert(table).SetMap(data).Suffix("RETURNING " + idCol).ToSql()
}

// columns collects the column values of instance, identity excluded.
func (s *Store) columns(d *metadata.Descriptor, instance reflect.Value) (map[string]any, error) {
	data := make(map[string]any)
	for _, el := range d.Elements() {
		col := el.Column()
		if col == "" || el.Variant() == metadata.ParamBacked || el.Markers().Identity {
			continue
		}
		v, ok := el.Get(instance)
		if !ok {
			continue
		}

		if el.Kind().IsReference() {
			ref, err := s.referenceID(d, el, v)
			if err != nil {
				return nil, err
			}
			data[col] = ref
			continue
		}
		if value, ok := columnValue(v); ok {
			data[col] = value
		}
	}
	return data, nil
}

func (s *Store) referenceID(d *metadata.Descriptor, el metadata.Element, v reflect.Value) (any, error) {
	switch {
	case !v.IsValid():
		return nil, nil
	case v.Kind() == reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
	case v.CanAddr():
		v = v.Addr()
	default:
		return nil, nil
	}
	target, err := d.Factory().Describe(metadata.Target(el), d.Mode())
	if err != nil {
		return nil, err
	}
	id, ok := persist.IdentityOf(target, v)
	if !ok {
		return nil, nil
	}
	return id, nil
}

// Link implements persist.Sink. An existing row is kept.
func (s *Store) Link(ctx context.Context, link persist.Link) error {
	query, args, err := s.Builder().
		Insert(link.Name).
		Columns(link.OwnerColumn, link.TargetColumn).
		Values(link.OwnerID, link.TargetID).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build link: %w", err)
	}
	if _, err := s.txm.GetQuerier(ctx).ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("link %s: %w", link.Name, err)
	}
	return nil
}

// DeleteAll implements persist.Sink.
func (s *Store) DeleteAll(ctx context.Context, d *metadata.Descriptor, exclude []any) (int64, error) {
	col := "id"
	if idEl := d.Identity(); idEl != nil {
		col = identityColumn(idEl)
	}
	return s.deleteExcept(ctx, d.TableName(), col, exclude)
}

// Unlink implements persist.Sink.
func (s *Store) Unlink(ctx context.Context, table persist.AssocTable, exclude []any) (int64, error) {
	return s.deleteExcept(ctx, table.Name, table.OwnerColumn, exclude)
}

func (s *Store) deleteExcept(ctx context.Context, table, col string, exclude []any) (int64, error) {
	q := s.Builder().Delete(table)
	if len(exclude) > 0 {
		q = q.Where(squirrel.NotEq{col: exclude})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}
	res, err := s.txm.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", table, err)
	}
	return res.RowsAffected()
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	query, args, err := s.Builder().Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count: %w", err)
	}
	var n int64
	if err := sqlscan.Get(ctx, s.txm.GetQuerier(ctx), &n, query, args...); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func identityColumn(el metadata.Element) string {
	if col := el.Column(); col != "" {
		return col
	}
	return "id"
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

var (
	timeType   = reflect.TypeOf(time.Time{})
	valuerType = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// columnValue converts a scalar to a driver argument. Values the driver cannot
// take (nested structs without a Valuer) are skipped.
func columnValue(v reflect.Value) (any, bool) {
	if !v.IsValid() {
		return nil, false
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, true
		}
		if v.Type().Implements(valuerType) {
			return v.Interface(), true
		}
		v = v.Elem()
	}
	if v.Type().Implements(valuerType) || v.Type() == timeType {
		return v.Interface(), true
	}

	switch v.Kind() {
	case reflect.String:
		return v.String(), true
	case reflect.Bool:
		return v.Bool(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Bytes(), true
		}
	}
	return nil, false
}
