package ws

import (
	"context"

	"github.com/zaqqye/simlab_backend/internal/services"
)

type Hubs struct {
	Dashboard *DashboardHub
	Student   *StudentHub
}

func NewHubs() *Hubs {
	return &Hubs{
		Dashboard: NewDashboardHub(),
		Student:   NewStudentHub(),
	}
}

// Run starts both hubs and blocks until ctx is done.
func (h *Hubs) Run(ctx context.Context) {
	go h.Dashboard.Run(ctx)
	h.Student.Run(ctx)
}

// InteractionChanged implements services.Notifier.
func (h *Hubs) InteractionChanged(u services.InteractionUpdate) {
	h.Dashboard.Broadcast(u)
	h.Student.Notify(u.PrincipalID, StudentMessage{Type: eventInteractionUpdated, Interaction: &u})
}

var _ services.Notifier = (*Hubs)(nil)
