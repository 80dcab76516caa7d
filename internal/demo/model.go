// Package demo is a small order-line schema covering every relationship kind
// the materializer handles. The seed CLI and the HTTP service generate it.
package demo

import (
	"errors"
	"time"

	"seedgraph/internal/core/id"
	"seedgraph/internal/core/types"
	"seedgraph/internal/metadata"
)

// Person is a plain entity with generated contact data.
type Person struct {
	ID        id.ID     `db:"id" seed:"id" json:"id"`
	Name      string    `db:"name" seed:"min=3,max=20" json:"name"`
	Email     string    `db:"email" seed:"email" json:"email"`
	BirthDate time.Time `db:"birth_date" json:"birthDate"`
}

func (*Person) TableName() string { return "persons" }

// Category groups line items; the collection is back-filled on wiring.
type Category struct {
	ID        id.ID       `db:"id" seed:"id" json:"id"`
	Code      string      `db:"code" seed:"seq" json:"code"`
	Name      string      `db:"name" seed:"min=4,max=30" json:"name"`
	LineItems []*LineItem `seed:"o2m" json:"-"`
}

func (*Category) TableName() string { return "categories" }

// Tag is the inverse side of the line item many-to-many.
type Tag struct {
	ID    int64       `db:"id" seed:"id" json:"id"`
	Label string      `db:"label" seed:"min=2,max=12" json:"label"`
	Items []*LineItem `seed:"m2m" json:"-"`
}

func (*Tag) TableName() string { return "tags" }

// Currency is a closed set of reference rows; its values are never inserted.
type Currency struct {
	Code string `db:"code" seed:"id" json:"code"`
	Name string `db:"name" json:"name"`
}

func (*Currency) TableName() string { return "currencies" }

func (Currency) EnumValues() []any {
	return []any{
		Currency{Code: "EUR", Name: "Euro"},
		Currency{Code: "USD", Name: "US Dollar"},
	}
}

// Status is a scalar closed enumeration.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusPosted Status = "posted"
)

func (Status) EnumValues() []any { return []any{StatusDraft, StatusPosted} }

// LineItem is the usual fixture root.
type LineItem struct {
	ID       id.ID       `db:"id" seed:"id" json:"id"`
	Number   string      `db:"number" seed:"seq" json:"number"`
	Quantity int         `db:"quantity" seed:"min=1,max=50" json:"quantity"`
	Price    types.Money `db:"price" json:"price"`
	Status   Status      `db:"status" json:"status"`
	Category *Category   `seed:"ref,join=category_id" json:"category"`
	Owner    *Person     `seed:"ref,join=owner_id" json:"owner"`
	Reviewer *Person     `seed:"ref,optional,join=reviewer_id" json:"reviewer,omitempty"`
	Currency *Currency   `seed:"required,join=currency_code" json:"currency"`
	Tags     []*Tag      `seed:"m2m,table=line_item_tags" json:"tags,omitempty"`
}

func (*LineItem) TableName() string { return "line_items" }

// NewLineItem is the widest constructor; parameters come from the registry
// or are built on demand.
func NewLineItem(category *Category, owner *Person) (*LineItem, error) {
	if category == nil || owner == nil {
		return nil, errors.New("line item needs a category and an owner")
	}
	return &LineItem{Category: category, Owner: owner, Status: StatusDraft}, nil
}

// NewCategory is the nullary fallback.
func NewCategory() *Category {
	return &Category{LineItems: []*LineItem{}}
}

// Employee references itself through an optional manager.
type Employee struct {
	ID      id.ID       `db:"id" seed:"id" json:"id"`
	Title   string      `db:"title" json:"title"`
	Person  *Person     `seed:"required,join=person_id" json:"person"`
	Manager *Employee   `seed:"ref,optional,join=manager_id" json:"manager,omitempty"`
	Reports []*Employee `seed:"o2m" json:"-"`
}

func (*Employee) TableName() string { return "employees" }

// Account uses accessor methods over unexported fields.
type Account struct {
	id      id.ID       `db:"id" seed:"id"`
	iban    string      `db:"iban" seed:"min=22,max=22"`
	balance types.Money `db:"balance"`
	holder  *Person     `seed:"ref,join=holder_id"`
}

func (*Account) TableName() string { return "accounts" }

func (a *Account) ID() id.ID { return a.id }
func (a *Account) SetID(v id.ID) { a.id = v }
func (a *Account) IBAN() string { return a.iban }
func (a *Account) SetIBAN(v string) { a.iban = v }
func (a *Account) Balance() types.Money { return a.balance }
func (a *Account) SetBalance(v types.Money) { a.balance = v }
func (a *Account) Holder() *Person { return a.holder }
func (a *Account) SetHolder(v *Person) { a.holder = v }

// Schema registers every demo type by name.
func Schema() *metadata.Schema {
	s := metadata.NewSchema()
	s.Register(Person{}, Category{}, Tag{}, Currency{}, LineItem{}, Employee{}, Account{})
	return s
}

// Constructors returns the constructor catalog of the demo types.
func Constructors() *metadata.Constructors {
	c := metadata.NewConstructors()
	c.MustRegister(NewLineItem, NewCategory)
	return c
}
