package service

import (
	"context"
	"time"

	"pawsit/internal/database"
	"pawsit/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetAccount(ctx context.Context, id int64) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}
func (m *mockRepo) IsAccountMember(ctx context.Context, accountID, userID int64) (bool, error) {
	args := m.Called(ctx, accountID, userID)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) GetPet(ctx context.Context, id int64) (*models.Pet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Pet), args.Error(1)
}
func (m *mockRepo) GetSitter(ctx context.Context, id int64) (*models.Sitter, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sitter), args.Error(1)
}
func (m *mockRepo) GetOffering(ctx context.Context, id int64) (*models.ServiceOffering, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceOffering), args.Error(1)
}
func (m *mockRepo) GetOfferingsBySitter(ctx context.Context, sitterID int64) ([]*models.ServiceOffering, error) {
	args := m.Called(ctx, sitterID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ServiceOffering), args.Error(1)
}
func (m *mockRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockRepo) CreateBookingGuarded(ctx context.Context, b *models.Booking, maxPending int) error {
	return m.Called(ctx, b, maxPending).Error(0)
}
func (m *mockRepo) HasConflict(ctx context.Context, sitterID int64, ws, we time.Time, ex int64) (bool, error) {
	args := m.Called(ctx, sitterID, ws, we, ex)
	return args.Bool(0), args.Error(1)
}
func (m *mockRepo) CountPendingByUser(ctx context.Context, userID int64) (int, error) {
	args := m.Called(ctx, userID)
	return args.Int(0), args.Error(1)
}
func (m *mockRepo) UpdateBookingStatusWithVersion(ctx context.Context, id, v int64, c database.BookingStatusChange) error {
	return m.Called(ctx, id, v, c).Error(0)
}
func (m *mockRepo) UpdateBookingScheduleGuarded(ctx context.Context, id, v, sid int64, s, e time.Time, n string) error {
	return m.Called(ctx, id, v, sid, s, e, n).Error(0)
}
func (m *mockRepo) DeleteBooking(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockRepo) GetBookingsBySitter(ctx context.Context, sid int64, f, t time.Time) ([]*models.Booking, error) {
	args := m.Called(ctx, sid, f, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetBookingsByUser(ctx context.Context, uid int64) ([]*models.Booking, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}
func (m *mockRepo) GetInvoice(ctx context.Context, id int64) (*models.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockRepo) GetInvoiceByBooking(ctx context.Context, bid int64) (*models.Invoice, error) {
	args := m.Called(ctx, bid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockRepo) GetInvoicesByAccount(ctx context.Context, aid int64) ([]*models.Invoice, error) {
	args := m.Called(ctx, aid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}
func (m *mockRepo) CreateInvoiceWithItems(ctx context.Context, inv *models.Invoice, prefix string) error {
	return m.Called(ctx, inv, prefix).Error(0)
}
func (m *mockRepo) UpdateInvoiceStatusWithVersion(ctx context.Context, id, v int64, status, notes string) error {
	return m.Called(ctx, id, v, status, notes).Error(0)
}
func (m *mockRepo) UpdateInvoiceFinancialsWithVersion(ctx context.Context, id, v, sub, fee, total int64, notes string) error {
	return m.Called(ctx, id, v, sub, fee, total, notes).Error(0)
}
func (m *mockRepo) MarkOverdueInvoices(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) CreatePlatformFee(ctx context.Context, fee *models.PlatformFee) error {
	return m.Called(ctx, fee).Error(0)
}
func (m *mockRepo) CreatePayment(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockRepo) SumSucceededPayments(ctx context.Context, iid int64) (int64, error) {
	args := m.Called(ctx, iid)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) CreateEffectTask(ctx context.Context, task *models.EffectTask) error {
	return m.Called(ctx, task).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Send(ctx context.Context, recipient int64, tpl string, vars map[string]string) error {
	return m.Called(ctx, recipient, tpl, vars).Error(0)
}

type mockEffects struct {
	mock.Mock
}

func (m *mockEffects) EnqueueEffect(ctx context.Context, tt string, bid, iid int64, p interface{}) error {
	return m.Called(ctx, tt, bid, iid, p).Error(0)
}

type mockCompletion struct {
	mock.Mock
}

func (m *mockCompletion) HandleBookingCompleted(ctx context.Context, bookingID int64) {
	m.Called(ctx, bookingID)
}

type mockInvoiceService struct {
	mock.Mock
}

func (m *mockInvoiceService) GenerateForCompletedBooking(ctx context.Context, bid int64, items []models.InvoiceItemRequest) (*models.Invoice, error) {
	args := m.Called(ctx, bid, items)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) SendInvoice(ctx context.Context, id, v int64, r models.Requester) (*models.Invoice, error) {
	args := m.Called(ctx, id, v, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) GetInvoice(ctx context.Context, id int64, r models.Requester) (*models.Invoice, error) {
	args := m.Called(ctx, id, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) ListInvoicesForAccount(ctx context.Context, aid int64, r models.Requester) ([]*models.Invoice, error) {
	args := m.Called(ctx, aid, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) CancelInvoice(ctx context.Context, id, v int64, reason string, r models.Requester) (*models.Invoice, error) {
	args := m.Called(ctx, id, v, reason, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) UpdateInvoice(ctx context.Context, id, v int64, p models.InvoicePatch, r models.Requester) (*models.Invoice, error) {
	args := m.Called(ctx, id, v, p, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
func (m *mockInvoiceService) RecordPayment(ctx context.Context, id int64, amount int64, method string, r models.Requester) (*models.Invoice, error) {
	args := m.Called(ctx, id, amount, method, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invoice), args.Error(1)
}
