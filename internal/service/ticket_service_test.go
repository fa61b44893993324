package service

import (
	"context"
	"testing"
	"time"

	"github.com/edu-patrimonio/workorder-service/internal/domain"
	"github.com/edu-patrimonio/workorder-service/internal/events"
	apperrors "github.com/edu-patrimonio/workorder-service/pkg/util"
)

func newTicketFixture() (*TicketService, *memTicketRepo, *memDirectory, *syncDispatcher) {
	tickets := newMemTicketRepo()
	directory := newMemDirectory()
	dispatcher := newSyncDispatcher()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:    tickets,
		DirectoryRepo: directory,
		Dispatcher:    dispatcher,
	})
	return svc, tickets, directory, dispatcher
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, _ := newTicketFixture()

	cases := []struct {
		name  string
		input TicketCreateInput
	}{
		{"empty title", TicketCreateInput{Title: "  ", Description: "algo quebrou", TenantID: strPtr("escola-1")}},
		{"empty description", TicketCreateInput{Title: "Cadeira quebrada", Description: "", TenantID: strPtr("escola-1")}},
		{"unknown priority", TicketCreateInput{Title: "Cadeira quebrada", Description: "pé solto", Priority: "URGENTISSIMA", TenantID: strPtr("escola-1")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Create(context.Background(), tc.input); err == nil {
				t.Fatal("want validation error, got nil")
			} else if de := apperrors.ToDomainError(err); de.Code != "VALIDATION_FAILED" {
				t.Errorf("code = %s, want VALIDATION_FAILED", de.Code)
			}
		})
	}
}

func TestCreateResolvesTenantFromAsset(t *testing.T) {
	svc, _, directory, _ := newTicketFixture()
	directory.addActor(domain.Technician{ID: "requester-1", Name: "Ana", Role: domain.ActorRoleRequester, Active: true})
	directory.mu.Lock()
	directory.assetOwners["asset-7"] = "escola-7"
	directory.mu.Unlock()

	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Quadro interativo travando",
		Description: "Tela congela após alguns minutos",
		AssetID:     strPtr("asset-7"),
		CreatorID:   strPtr("requester-1"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.TenantID != "escola-7" {
		t.Errorf("tenant = %s, want escola-7", ticket.TenantID)
	}
	if ticket.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want %s", ticket.Status, domain.TicketStatusOpen)
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Errorf("default priority = %s, want %s", ticket.Priority, domain.TicketPriorityMedium)
	}
}

func TestCreateExplicitTenantWinsOverAsset(t *testing.T) {
	svc, _, directory, _ := newTicketFixture()
	directory.addActor(domain.Technician{ID: "requester-1", Name: "Ana", Role: domain.ActorRoleRequester, Active: true})
	directory.mu.Lock()
	directory.assetOwners["asset-7"] = "escola-7"
	directory.mu.Unlock()

	ticket, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Ativo emprestado com defeito",
		Description: "Notebook da escola 7 em uso na escola 2",
		AssetID:     strPtr("asset-7"),
		TenantID:    strPtr("escola-2"),
		CreatorID:   strPtr("requester-1"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.TenantID != "escola-2" {
		t.Errorf("tenant = %s, want explicit escola-2", ticket.TenantID)
	}
}

func TestCreateUnresolvedTenant(t *testing.T) {
	svc, _, _, _ := newTicketFixture()

	_, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Sem contexto",
		Description: "Nem tenant nem ativo informados",
	})
	if err == nil {
		t.Fatal("want unresolved tenant error, got nil")
	}
	if de := apperrors.ToDomainError(err); de.Code != "UNRESOLVED_TENANT" {
		t.Errorf("code = %s, want UNRESOLVED_TENANT", de.Code)
	}
}

func TestCreateUnknownAssetIsNotFound(t *testing.T) {
	svc, _, _, _ := newTicketFixture()

	_, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Etiqueta órfã",
		Description: "QR aponta para ativo inexistente",
		AssetID:     strPtr("asset-missing"),
	})
	if !apperrors.IsNotFound(err) {
		t.Errorf("want not found, got %v", err)
	}
}

func TestCreateAnonymousActorIsReused(t *testing.T) {
	svc, _, directory, _ := newTicketFixture()
	directory.mu.Lock()
	directory.assetOwners["asset-1"] = "escola-1"
	directory.mu.Unlock()

	first, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Torneira pingando",
		Description: "Banheiro do segundo andar",
		AssetID:     strPtr("asset-1"),
	})
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(context.Background(), TicketCreateInput{
		Title:       "Lâmpada queimada",
		Description: "Corredor principal",
		TenantID:    strPtr("escola-1"),
	})
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first.CreatedByID != second.CreatedByID {
		t.Errorf("anonymous creator differs: %s vs %s", first.CreatedByID, second.CreatedByID)
	}
}

func TestChangeStatusCloseBackfillsResolvedAt(t *testing.T) {
	svc, tickets, directory, _ := newTicketFixture()
	directory.addActor(domain.Technician{ID: "manager-1", Name: "Gestora", Role: domain.ActorRoleManager, Active: true})
	ticket := seedOpenTicket(t, tickets)

	// Put the ticket in progress without a resolution, then close it
	// directly. Closing must back-fill resolved_at so it never trails
	// closed_at.
	if _, err := tickets.AcquireOpen(context.Background(), ticket.ID, "tech-1", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	closed, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusClosed, "Encerrado sem reparo, ativo será baixado", "manager-1")
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != domain.TicketStatusClosed {
		t.Errorf("status = %s, want %s", closed.Status, domain.TicketStatusClosed)
	}
	if closed.ClosedAt == nil || closed.ResolvedAt == nil {
		t.Fatalf("close must set closed_at and resolved_at: %+v", closed)
	}
	if closed.ResolvedAt.After(*closed.ClosedAt) {
		t.Errorf("resolved_at %v after closed_at %v", closed.ResolvedAt, closed.ClosedAt)
	}

	if _, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusClosed, "", "manager-1"); apperrors.ConflictReason(err) != domain.GuardWrongState {
		t.Errorf("double close: want WrongState conflict, got %v", err)
	}
}

func TestChangeStatusReopenClearsAssignment(t *testing.T) {
	svc, tickets, directory, dispatcher := newTicketFixture()
	directory.addActor(domain.Technician{ID: "manager-1", Name: "Gestora", Role: domain.ActorRoleManager, Active: true})
	ticket := seedOpenTicket(t, tickets)

	if _, err := tickets.AcquireOpen(context.Background(), ticket.ID, "tech-1", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := tickets.Resolve(context.Background(), ticket.ID, "tech-1", "Reparo provisório aplicado", time.Now()); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	reopened, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusOpen, "", "manager-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.TicketStatusOpen {
		t.Errorf("status = %s, want %s", reopened.Status, domain.TicketStatusOpen)
	}
	if reopened.AssignedTo != nil || reopened.AcceptedAt != nil || reopened.Resolution != nil || reopened.ResolvedAt != nil {
		t.Errorf("reopen must clear assignment and resolution: %+v", reopened)
	}

	published := dispatcher.eventsOfType(events.EventTicketStatusChanged)
	if len(published) != 1 {
		t.Fatalf("status change events = %d, want 1", len(published))
	}
	payload := published[0].Payload.(events.TicketStatusChangedPayload)
	if payload.OldStatus != domain.TicketStatusResolved || payload.NewStatus != domain.TicketStatusOpen {
		t.Errorf("payload transition = %s -> %s", payload.OldStatus, payload.NewStatus)
	}
}

func TestChangeStatusBackToWorkStateClearsCompletionFields(t *testing.T) {
	tickets := newMemTicketRepo()
	directory := newMemDirectory()
	dispatcher := newSyncDispatcher()
	svc := NewTicketService(TicketDependencies{
		TicketRepo:    tickets,
		DirectoryRepo: directory,
		Dispatcher:    dispatcher,
	})
	assignment := NewAssignmentService(AssignmentDependencies{
		TicketRepo:    tickets,
		DirectoryRepo: directory,
		Dispatcher:    dispatcher,
	})
	seedTechnician(directory, "tech-1")
	directory.addActor(domain.Technician{ID: "manager-1", Name: "Gestora", Role: domain.ActorRoleManager, Active: true})
	ticket := seedOpenTicket(t, tickets)

	if _, err := assignment.Accept(context.Background(), ticket.ID, "tech-1"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusClosed, "Fechado por engano na triagem", "manager-1"); err != nil {
		t.Fatalf("close: %v", err)
	}

	toggled, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusInProgress, "", "manager-1")
	if err != nil {
		t.Fatalf("back to in progress: %v", err)
	}
	if toggled.Status != domain.TicketStatusInProgress {
		t.Errorf("status = %s, want %s", toggled.Status, domain.TicketStatusInProgress)
	}
	if toggled.Resolution != nil || toggled.ResolvedAt != nil || toggled.ClosedAt != nil {
		t.Fatalf("work state must carry no completion fields: %+v", toggled)
	}
	if toggled.AssignedTo == nil || *toggled.AssignedTo != "tech-1" {
		t.Errorf("toggle must keep the assignee: %v", toggled.AssignedTo)
	}

	// The reopened work can be completed again; the earlier close must not
	// leave a closed_at behind the fresh resolved_at.
	resolved, err := assignment.Complete(context.Background(), ticket.ID, "tech-1", "Reparo definitivo concluído e validado")
	if err != nil {
		t.Fatalf("complete after toggle: %v", err)
	}
	if resolved.ResolvedAt == nil {
		t.Fatal("complete must set resolved_at")
	}
	if resolved.ClosedAt != nil && resolved.ResolvedAt.After(*resolved.ClosedAt) {
		t.Errorf("resolved_at %v after closed_at %v", resolved.ResolvedAt, resolved.ClosedAt)
	}
}

func TestChangeStatusRequiresAssigneeForWorkStates(t *testing.T) {
	svc, tickets, _, _ := newTicketFixture()
	ticket := seedOpenTicket(t, tickets)

	for _, status := range []domain.TicketStatus{domain.TicketStatusInProgress, domain.TicketStatusWaiting} {
		if _, err := svc.ChangeStatus(context.Background(), ticket.ID, status, "", "manager-1"); apperrors.ConflictReason(err) != domain.GuardNotAssignable {
			t.Errorf("%s without assignee: want NotAssignable conflict, got %v", status, err)
		}
	}

	if _, err := tickets.AcquireOpen(context.Background(), ticket.ID, "tech-1", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	waiting, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusWaiting, "", "tech-1")
	if err != nil {
		t.Fatalf("to waiting: %v", err)
	}
	if waiting.AssignedTo == nil {
		t.Error("waiting must keep the assignee")
	}
	if _, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusInProgress, "", "tech-1"); err != nil {
		t.Fatalf("back to in progress: %v", err)
	}
}

func TestChangeStatusResolveRequiresResolution(t *testing.T) {
	svc, tickets, _, _ := newTicketFixture()
	ticket := seedOpenTicket(t, tickets)
	if _, err := tickets.AcquireOpen(context.Background(), ticket.ID, "tech-1", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "curto", "tech-1"); err == nil {
		t.Fatal("short resolution must be rejected")
	} else if de := apperrors.ToDomainError(err); de.Code != "VALIDATION_FAILED" {
		t.Errorf("code = %s, want VALIDATION_FAILED", de.Code)
	}

	resolved, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "Peça substituída e testada", "tech-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.ResolvedAt == nil || resolved.Resolution == nil {
		t.Fatalf("resolve must set resolution fields: %+v", resolved)
	}
}

func TestChangeStatusClosedToResolvedDropsClosedAt(t *testing.T) {
	svc, tickets, _, _ := newTicketFixture()
	ticket := seedOpenTicket(t, tickets)
	if _, err := tickets.AcquireOpen(context.Background(), ticket.ID, "tech-1", time.Now()); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := tickets.Close(context.Background(), ticket.ID, strPtr("Encerrado antes da validação"), time.Now()); err != nil {
		t.Fatalf("close: %v", err)
	}

	resolved, err := svc.ChangeStatus(context.Background(), ticket.ID, domain.TicketStatusResolved, "", "manager-1")
	if err != nil {
		t.Fatalf("resolve from closed: %v", err)
	}
	if resolved.ClosedAt != nil {
		t.Errorf("resolved ticket still carries closed_at %v", resolved.ClosedAt)
	}
	if resolved.ResolvedAt == nil {
		t.Error("resolve must set resolved_at")
	}
}

func TestListScopesRequesterToOwnTickets(t *testing.T) {
	svc, tickets, directory, _ := newTicketFixture()
	directory.addActor(domain.Technician{ID: "requester-1", Name: "Ana", Role: domain.ActorRoleRequester, Active: true})
	directory.addActor(domain.Technician{ID: "requester-2", Name: "Bia", Role: domain.ActorRoleRequester, Active: true})

	for _, creator := range []string{"requester-1", "requester-1", "requester-2"} {
		ticket := &domain.Ticket{
			Title:       "Chamado de " + creator,
			Description: "descrição mínima",
			TenantID:    "escola-1",
			CreatedByID: creator,
			Priority:    domain.TicketPriorityLow,
			Status:      domain.TicketStatusOpen,
		}
		if err := tickets.Create(context.Background(), ticket); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	mine, err := svc.List(context.Background(), TicketListFilter{
		ActorRole: domain.ActorRoleRequester,
		ActorID:   "requester-1",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(mine) != 2 {
		t.Fatalf("requester sees %d tickets, want 2", len(mine))
	}
	for _, ticket := range mine {
		if ticket.CreatedByID != "requester-1" {
			t.Errorf("leaked ticket created by %s", ticket.CreatedByID)
		}
	}

	pool, err := svc.List(context.Background(), TicketListFilter{
		ActorRole: domain.ActorRoleTechnician,
		ActorID:   "tech-1",
	})
	if err != nil {
		t.Fatalf("list as technician: %v", err)
	}
	if len(pool) != 3 {
		t.Errorf("technician sees %d tickets, want the full pool of 3", len(pool))
	}
}

func TestStatsAggregation(t *testing.T) {
	svc, tickets, _, _ := newTicketFixture()

	now := time.Now()
	resolvedAt := now.Add(90 * time.Second)
	seed := []*domain.Ticket{
		{Title: "a", Description: "d", TenantID: "escola-1", CreatedByID: "r", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusOpen},
		{Title: "b", Description: "d", TenantID: "escola-1", CreatedByID: "r", Priority: domain.TicketPriorityHigh, Status: domain.TicketStatusResolved, ResolvedAt: &resolvedAt},
		{Title: "c", Description: "d", TenantID: "escola-2", CreatedByID: "r", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen},
	}
	for _, ticket := range seed {
		if err := tickets.Create(context.Background(), ticket); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	stats, err := svc.Stats(context.Background(), TicketListFilter{
		TenantID:  strPtr("escola-1"),
		ActorRole: domain.ActorRoleManager,
		ActorID:   "manager-1",
	})
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 2 {
		t.Errorf("total = %d, want 2", stats.Total)
	}
	if stats.ByStatus[domain.TicketStatusOpen] != 1 || stats.ByStatus[domain.TicketStatusResolved] != 1 {
		t.Errorf("by status = %v", stats.ByStatus)
	}
	if stats.ByPriority[domain.TicketPriorityHigh] != 2 {
		t.Errorf("by priority = %v", stats.ByPriority)
	}
	if stats.AvgResolutionSeconds == nil {
		t.Error("want average resolution time for the resolved ticket")
	}
}
