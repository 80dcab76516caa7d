package demo

import "strings"

// DDL returns the CREATE statements of the demo tables, including the
// sys_sequences table and the currency reference rows. sqlite selects the
// SQLite column types; otherwise PostgreSQL types are used.
func DDL(sqlite bool) []string {
	uuidType, serial, money, ts := "UUID", "BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY", "NUMERIC(18,2)", "TIMESTAMPTZ"
	if sqlite {
		uuidType, serial, money, ts = "TEXT", "INTEGER PRIMARY KEY", "TEXT", "TIMESTAMP"
	}
	r := strings.NewReplacer("{uuid}", uuidType, "{serial}", serial, "{money}", money, "{ts}", ts)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS persons (
			id {uuid} PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			birth_date {ts}
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			id {uuid} PRIMARY KEY,
			code TEXT NOT NULL,
			name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id {serial},
			label TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS currencies (
			code TEXT PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`INSERT INTO currencies (code, name) VALUES ('EUR', 'Euro'), ('USD', 'US Dollar')
			ON CONFLICT DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS line_items (
			id {uuid} PRIMARY KEY,
			number TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price {money},
			status TEXT NOT NULL,
			category_id {uuid} NOT NULL REFERENCES categories(id),
			owner_id {uuid} NOT NULL REFERENCES persons(id),
			reviewer_id {uuid} REFERENCES persons(id),
			currency_code TEXT NOT NULL REFERENCES currencies(code)
		)`,
		`CREATE TABLE IF NOT EXISTS line_item_tags (
			line_item_id {uuid} NOT NULL REFERENCES line_items(id),
			tag_id BIGINT NOT NULL REFERENCES tags(id),
			PRIMARY KEY (line_item_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			id {uuid} PRIMARY KEY,
			title TEXT NOT NULL,
			person_id {uuid} NOT NULL REFERENCES persons(id),
			manager_id {uuid} REFERENCES employees(id)
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id {uuid} PRIMARY KEY,
			iban TEXT NOT NULL,
			balance {money},
			holder_id {uuid} NOT NULL REFERENCES persons(id)
		)`,
		`CREATE TABLE IF NOT EXISTS sys_sequences (
			key TEXT PRIMARY KEY,
			value BIGINT NOT NULL
		)`,
	}
	for i, s := range stmts {
		stmts[i] = r.Replace(s)
	}
	return stmts
}

// Tables lists the demo tables in dependency order, parents first.
var Tables = []string{
	"persons", "categories", "tags", "currencies",
	"line_items", "line_item_tags", "employees", "accounts",
}
