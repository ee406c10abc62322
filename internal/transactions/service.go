package transactions

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/clubline/clubline-backend/pkg/enums"
	pkgerrors "github.com/clubline/clubline-backend/pkg/errors"
	"github.com/clubline/clubline-backend/pkg/pagination"
)

// Service exposes club-scoped reads over the ledger. All writes go through
// the webhook and refund paths; nothing here mutates a row.
type Service interface {
	GetForClub(ctx context.Context, clubID, transactionID uuid.UUID) (*TransactionDetail, error)
	ListForClub(ctx context.Context, clubID uuid.UUID, input ListInput) (TransactionList, error)
}

type service struct {
	repo Repository
}

// NewService wires a transactions service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transactions repo required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetForClub(ctx context.Context, clubID, transactionID uuid.UUID) (*TransactionDetail, error) {
	if clubID == uuid.Nil || transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "club id and transaction id required")
	}

	row, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load transaction")
	}
	if row == nil || row.ClubID != clubID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}

	detail := &TransactionDetail{TransactionDTO: toDTO(*row)}
	if row.Kind != enums.TransactionKindPayment {
		return detail, nil
	}

	children, err := s.repo.ListByParentID(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load child transactions")
	}
	for _, child := range children {
		detail.Children = append(detail.Children, toDTO(child))
	}

	refunded, err := s.repo.SumCompletedRefunds(ctx, row.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum refunds")
	}
	detail.RefundedCents = refunded
	return detail, nil
}

func (s *service) ListForClub(ctx context.Context, clubID uuid.UUID, input ListInput) (TransactionList, error) {
	if clubID == uuid.Nil {
		return TransactionList{}, pkgerrors.New(pkgerrors.CodeValidation, "club id required")
	}

	filter := ListFilter{}
	if raw := strings.TrimSpace(input.Kind); raw != "" {
		kind, err := enums.ParseTransactionKind(raw)
		if err != nil {
			return TransactionList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse kind filter")
		}
		filter.Kind = kind
	}
	if raw := strings.TrimSpace(input.Status); raw != "" {
		status, err := enums.ParseTransactionStatus(raw)
		if err != nil {
			return TransactionList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse status filter")
		}
		filter.Status = status
	}

	cursor, err := pagination.ParseCursor(strings.TrimSpace(input.Cursor))
	if err != nil {
		return TransactionList{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse cursor")
	}

	rows, next, err := s.repo.ListByClub(ctx, clubID, filter, cursor, input.Limit)
	if err != nil {
		return TransactionList{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	list := TransactionList{Transactions: make([]TransactionDTO, 0, len(rows))}
	for _, row := range rows {
		list.Transactions = append(list.Transactions, toDTO(row))
	}
	if next != nil {
		list.NextCursor = pagination.EncodeCursor(*next)
	}
	return list, nil
}
