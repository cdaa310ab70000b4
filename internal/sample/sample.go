// Package sample declares the entity types used by the CLI demo and by
// tests that need a realistic object graph.
package sample

import (
	"github.com/google/uuid"

	"github.com/roach88/ormlite/internal/entity"
)

// Item is a product with a price.
type Item struct {
	entity.Model
	Name  string
	Price float64
}

func (*Item) EntityType() string { return "Item" }

// Customer places purchases.
type Customer struct {
	entity.Model
	Name   string
	Email  string
	Active bool
	Visits int32
}

func (*Customer) EntityType() string { return "Customer" }

// Purchase references a customer and a list of items.
type Purchase struct {
	entity.Model
	Number   int64
	Customer *Customer
	Items    []*Item
	Notes    []any
	Token    uuid.UUID
	Priority *int32
	Total    float64
}

func (*Purchase) EntityType() string { return "Purchase" }

// ItemDescriptor describes Item.
func ItemDescriptor() entity.Descriptor {
	return entity.Describe[Item](
		entity.TextField("name", func(i *Item) *string { return &i.Name }),
		entity.FloatField("price", func(i *Item) *float64 { return &i.Price }),
	)
}

// CustomerDescriptor describes Customer.
func CustomerDescriptor() entity.Descriptor {
	return entity.Describe[Customer](
		entity.TextField("name", func(c *Customer) *string { return &c.Name }),
		entity.TextField("email", func(c *Customer) *string { return &c.Email }),
		entity.BoolField("active", func(c *Customer) *bool { return &c.Active }),
		entity.Int32Field("visits", func(c *Customer) *int32 { return &c.Visits }),
	)
}

// PurchaseDescriptor describes Purchase.
func PurchaseDescriptor() entity.Descriptor {
	return entity.Describe[Purchase](
		entity.Int64Field("number", func(p *Purchase) *int64 { return &p.Number }),
		entity.ReferenceField("customer", func(p *Purchase) **Customer { return &p.Customer }),
		entity.ReferencesField("items", func(p *Purchase) *[]*Item { return &p.Items }),
		entity.CollectionField("notes", func(p *Purchase) *[]any { return &p.Notes }),
		entity.OpaqueField("token", func(p *Purchase) *uuid.UUID { return &p.Token }),
		entity.OptionalInt32Field("priority", func(p *Purchase) **int32 { return &p.Priority }),
		entity.FloatField("total", func(p *Purchase) *float64 { return &p.Total }),
	)
}

// Descriptors returns every sample descriptor, referenced types first.
func Descriptors() []entity.Descriptor {
	return []entity.Descriptor{
		ItemDescriptor(),
		CustomerDescriptor(),
		PurchaseDescriptor(),
	}
}
