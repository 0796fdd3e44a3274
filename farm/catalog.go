package farm

import (
	"context"
	"strings"
)

// =============================================================================
// CATALOG - Grades, orchards, customers
// =============================================================================
// Plain CRUD. Updates are partial: nil fields are left alone. Renames never
// touch the name snapshots already copied onto batches, records and orders.

type GradeInput struct {
	Name string
	Code string
}

type GradeUpdate struct {
	Name *string
	Code *string
}

type OrchardInput struct {
	Name        string
	Description string
}

type OrchardUpdate struct {
	Name        *string
	Description *string
}

type CustomerInput struct {
	Name    string
	Phone   string
	Address string
	Note    string
}

type CustomerUpdate struct {
	Name    *string
	Phone   *string
	Address *string
	Note    *string
}

func requireName(name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("name", "must not be empty")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Grades
// -----------------------------------------------------------------------------

func (e *Engine) CreateGrade(ctx context.Context, in GradeInput) (Grade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireName(in.Name); err != nil {
		return Grade{}, e.reject("create grade", err)
	}
	g := Grade{ID: GradeID(e.ids.NewID()), Name: in.Name, Code: in.Code, Seq: e.sequence()()}
	if err := e.commit(ctx, "create grade", Changeset{Grades: []Grade{g}}); err != nil {
		return Grade{}, err
	}
	e.logger.Info("grade created", "grade_id", g.ID, "name", g.Name)
	return g, nil
}

func (e *Engine) UpdateGrade(ctx context.Context, id GradeID, up GradeUpdate) (Grade, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.state.Grades[id]
	if !ok {
		return Grade{}, e.reject("update grade", notFound("grade", id))
	}
	if up.Name != nil {
		if err := requireName(*up.Name); err != nil {
			return Grade{}, e.reject("update grade", err)
		}
		g.Name = *up.Name
	}
	if up.Code != nil {
		g.Code = *up.Code
	}
	if err := e.commit(ctx, "update grade", Changeset{Grades: []Grade{g}}); err != nil {
		return Grade{}, err
	}
	return g, nil
}

// DeleteGrade refuses while an active batch or an open order uses the grade.
func (e *Engine) DeleteGrade(ctx context.Context, id GradeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.Grades[id]; !ok {
		return e.reject("delete grade", notFound("grade", id))
	}
	for _, b := range e.state.Batches {
		if b.GradeID == id && !b.Depleted() {
			return e.reject("delete grade", &ReferencedError{Kind: "grade", ID: string(id), By: "batch " + b.BatchNo})
		}
	}
	for _, o := range e.state.Orders {
		if !o.Status.Open() {
			continue
		}
		for _, it := range o.Items {
			if it.GradeID == id {
				return e.reject("delete grade", &ReferencedError{Kind: "grade", ID: string(id), By: "order " + o.OrderNo})
			}
		}
	}
	if err := e.commit(ctx, "delete grade", Changeset{DeletedGrades: []GradeID{id}}); err != nil {
		return err
	}
	e.logger.Info("grade deleted", "grade_id", id)
	return nil
}

func (e *Engine) GetGrade(id GradeID) (Grade, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	g, ok := e.state.Grades[id]
	if !ok {
		return Grade{}, notFound("grade", id)
	}
	return g, nil
}

func (e *Engine) ListGrades() []Grade {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return bySeq(e.state.Grades, func(g Grade) int64 { return g.Seq }, nil)
}

// -----------------------------------------------------------------------------
// Orchards
// -----------------------------------------------------------------------------

func (e *Engine) CreateOrchard(ctx context.Context, in OrchardInput) (Orchard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireName(in.Name); err != nil {
		return Orchard{}, e.reject("create orchard", err)
	}
	o := Orchard{ID: OrchardID(e.ids.NewID()), Name: in.Name, Description: in.Description, Seq: e.sequence()()}
	if err := e.commit(ctx, "create orchard", Changeset{Orchards: []Orchard{o}}); err != nil {
		return Orchard{}, err
	}
	e.logger.Info("orchard created", "orchard_id", o.ID, "name", o.Name)
	return o, nil
}

func (e *Engine) UpdateOrchard(ctx context.Context, id OrchardID, up OrchardUpdate) (Orchard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	o, ok := e.state.Orchards[id]
	if !ok {
		return Orchard{}, e.reject("update orchard", notFound("orchard", id))
	}
	if up.Name != nil {
		if err := requireName(*up.Name); err != nil {
			return Orchard{}, e.reject("update orchard", err)
		}
		o.Name = *up.Name
	}
	if up.Description != nil {
		o.Description = *up.Description
	}
	if err := e.commit(ctx, "update orchard", Changeset{Orchards: []Orchard{o}}); err != nil {
		return Orchard{}, err
	}
	return o, nil
}

// DeleteOrchard refuses while a pending picking record comes from the plot.
func (e *Engine) DeleteOrchard(ctx context.Context, id OrchardID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.Orchards[id]; !ok {
		return e.reject("delete orchard", notFound("orchard", id))
	}
	for _, p := range e.state.Picking {
		if p.OrchardID == id && p.Status == PickingPending {
			return e.reject("delete orchard", &ReferencedError{Kind: "orchard", ID: string(id), By: "picking record " + string(p.ID)})
		}
	}
	if err := e.commit(ctx, "delete orchard", Changeset{DeletedOrchards: []OrchardID{id}}); err != nil {
		return err
	}
	e.logger.Info("orchard deleted", "orchard_id", id)
	return nil
}

func (e *Engine) GetOrchard(id OrchardID) (Orchard, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	o, ok := e.state.Orchards[id]
	if !ok {
		return Orchard{}, notFound("orchard", id)
	}
	return o, nil
}

func (e *Engine) ListOrchards() []Orchard {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return bySeq(e.state.Orchards, func(o Orchard) int64 { return o.Seq }, nil)
}

// -----------------------------------------------------------------------------
// Customers
// -----------------------------------------------------------------------------

func (e *Engine) CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := requireName(in.Name); err != nil {
		return Customer{}, e.reject("create customer", err)
	}
	c := Customer{
		ID:      CustomerID(e.ids.NewID()),
		Name:    in.Name,
		Phone:   in.Phone,
		Address: in.Address,
		Note:    in.Note,
		Seq:     e.sequence()(),
	}
	if err := e.commit(ctx, "create customer", Changeset{Customers: []Customer{c}}); err != nil {
		return Customer{}, err
	}
	e.logger.Info("customer created", "customer_id", c.ID, "name", c.Name)
	return c, nil
}

func (e *Engine) UpdateCustomer(ctx context.Context, id CustomerID, up CustomerUpdate) (Customer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, ok := e.state.Customers[id]
	if !ok {
		return Customer{}, e.reject("update customer", notFound("customer", id))
	}
	if up.Name != nil {
		if err := requireName(*up.Name); err != nil {
			return Customer{}, e.reject("update customer", err)
		}
		c.Name = *up.Name
	}
	if up.Phone != nil {
		c.Phone = *up.Phone
	}
	if up.Address != nil {
		c.Address = *up.Address
	}
	if up.Note != nil {
		c.Note = *up.Note
	}
	if err := e.commit(ctx, "update customer", Changeset{Customers: []Customer{c}}); err != nil {
		return Customer{}, err
	}
	return c, nil
}

// DeleteCustomer refuses while the customer has an open order.
func (e *Engine) DeleteCustomer(ctx context.Context, id CustomerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.state.Customers[id]; !ok {
		return e.reject("delete customer", notFound("customer", id))
	}
	for _, o := range e.state.Orders {
		if o.CustomerID == id && o.Status.Open() {
			return e.reject("delete customer", &ReferencedError{Kind: "customer", ID: string(id), By: "order " + o.OrderNo})
		}
	}
	if err := e.commit(ctx, "delete customer", Changeset{DeletedCustomers: []CustomerID{id}}); err != nil {
		return err
	}
	e.logger.Info("customer deleted", "customer_id", id)
	return nil
}

func (e *Engine) GetCustomer(id CustomerID) (Customer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.state.Customers[id]
	if !ok {
		return Customer{}, notFound("customer", id)
	}
	return c, nil
}

func (e *Engine) ListCustomers() []Customer {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return bySeq(e.state.Customers, func(c Customer) int64 { return c.Seq }, nil)
}
