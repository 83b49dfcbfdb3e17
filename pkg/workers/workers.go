package workers

import (
	"fmt"

	"github.com/morezero/procurement-assistant/pkg/router"
	"github.com/morezero/procurement-assistant/pkg/worker"
)

// Options configures the reference worker set.
type Options struct {
	PO POWorkerOptions
}

// Set is the three reference workers sharing one catalog.
type Set struct {
	Catalog   *Catalog
	Inventory *worker.Server
	Supplier  *worker.Server
	PO        *worker.Server
}

// NewSet builds every reference worker over catalog.
func NewSet(catalog *Catalog, opts Options) *Set {
	return &Set{
		Catalog:   catalog,
		Inventory: NewInventoryMonitor(catalog),
		Supplier:  NewSupplierSelector(catalog),
		PO:        NewPurchaseOrderWorker(catalog, opts.PO),
	}
}

// Servers returns the workers in pipeline order.
func (s *Set) Servers() []*worker.Server {
	return []*worker.Server{s.Inventory, s.Supplier, s.PO}
}

// Server returns the worker with id.
func (s *Set) Server(id string) (*worker.Server, bool) {
	for _, srv := range s.Servers() {
		if srv.ID() == id {
			return srv, true
		}
	}
	return nil, false
}

// Register attaches every worker to r.
func (s *Set) Register(r *router.Router) error {
	for _, srv := range s.Servers() {
		if err := r.RegisterWorker(srv.ID(), srv); err != nil {
			return fmt.Errorf("%s - failed to register %s: %w", catalogLogPrefix, srv.ID(), err)
		}
	}
	return nil
}
