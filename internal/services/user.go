package services

import (
  "context"
  "fmt"
  "time"
  "gorm.io/datatypes"
  "gorm.io/gorm"
  "github.com/lumira/lumira-backend/internal/logger"
  perrors "github.com/lumira/lumira-backend/internal/pkg/errors"
  "github.com/lumira/lumira-backend/internal/repos"
  "github.com/lumira/lumira-backend/internal/types"
)

type UserService interface {
  // Register creates the user plus an empty balance; an existing
  // external id returns the stored user untouched.
  Register(ctx context.Context, externalID int64, username string, chatID int64) (*types.User, error)
  GetByExternalID(ctx context.Context, externalID int64) (*types.User, error)
  // ChangeBalance applies a deposit or withdraw of count credits.
  ChangeBalance(ctx context.Context, userID uint, action types.BalanceAction, count int) (*types.UserBalance, error)
  RecordInvoice(ctx context.Context, userID uint, credits int, paymentInfo datatypes.JSON) (*types.Invoice, error)
  RedeemPromoCode(ctx context.Context, userID uint, code string) (*types.UserBalance, error)
}

type userService struct {
  db       *gorm.DB
  log      *logger.Logger
  users    repos.UserRepo
  balances repos.BalanceRepo
  invoices repos.InvoiceRepo
  promos   repos.PromoRepo
}

func NewUserService(
  db *gorm.DB,
  baseLog *logger.Logger,
  users repos.UserRepo,
  balances repos.BalanceRepo,
  invoices repos.InvoiceRepo,
  promos repos.PromoRepo,
) UserService {
  svcLog := baseLog.With("service", "UserService")
  return &userService{
    db:       db,
    log:      svcLog,
    users:    users,
    balances: balances,
    invoices: invoices,
    promos:   promos,
  }
}

func (s *userService) Register(ctx context.Context, externalID int64, username string, chatID int64) (*types.User, error) {
  existing, err := s.users.GetByExternalID(ctx, nil, externalID)
  if err == nil {
    return existing, nil
  }
  if err != perrors.ErrNotFound {
    return nil, err
  }

  var created *types.User
  err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    user, cErr := s.users.Create(ctx, tx, &types.User{
      ExternalID: externalID,
      Username:   username,
      ChatID:     chatID,
      Active:     true,
    })
    if cErr != nil {
      return cErr
    }
    if _, bErr := s.balances.Create(ctx, tx, &types.UserBalance{UserID: user.ID}); bErr != nil {
      return bErr
    }
    created = user
    return nil
  })
  if err != nil {
    return nil, err
  }
  s.log.Info("registered user", "user_id", created.ID, "external_id", externalID)
  return created, nil
}

func (s *userService) GetByExternalID(ctx context.Context, externalID int64) (*types.User, error) {
  return s.users.GetByExternalID(ctx, nil, externalID)
}

func (s *userService) ChangeBalance(ctx context.Context, userID uint, action types.BalanceAction, count int) (*types.UserBalance, error) {
  if count <= 0 {
    return nil, fmt.Errorf("%w: count must be positive", perrors.ErrInvalidArgument)
  }

  balance, err := s.balances.GetByUserID(ctx, nil, userID)
  if err != nil {
    return nil, err
  }

  switch action {
  case types.BalanceActionDeposit:
    return s.balances.SetCount(ctx, nil, userID, balance.CountCourse+count)
  case types.BalanceActionWithdraw:
    if balance.CountCourse-count < 0 {
      return nil, fmt.Errorf("%w: insufficient balance", perrors.ErrInvalidState)
    }
    return s.balances.SetCount(ctx, nil, userID, balance.CountCourse-count)
  default:
    return nil, fmt.Errorf("%w: unknown balance action %q", perrors.ErrInvalidState, action)
  }
}

func (s *userService) RecordInvoice(ctx context.Context, userID uint, credits int, paymentInfo datatypes.JSON) (*types.Invoice, error) {
  var invoice *types.Invoice
  err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    row, cErr := s.invoices.Create(ctx, tx, &types.Invoice{
      UserID:      userID,
      PaidAt:      time.Now(),
      PaymentInfo: paymentInfo,
    })
    if cErr != nil {
      return cErr
    }
    balance, bErr := s.balances.GetByUserID(ctx, tx, userID)
    if bErr != nil {
      return bErr
    }
    if _, uErr := s.balances.SetCount(ctx, tx, userID, balance.CountCourse+credits); uErr != nil {
      return uErr
    }
    invoice = row
    return nil
  })
  if err != nil {
    return nil, err
  }
  return invoice, nil
}

func (s *userService) RedeemPromoCode(ctx context.Context, userID uint, code string) (*types.UserBalance, error) {
  promo, err := s.promos.GetByCode(ctx, nil, code)
  if err != nil {
    return nil, err
  }
  if promo.ExpiresAt != nil && time.Now().After(*promo.ExpiresAt) {
    return nil, fmt.Errorf("%w: promo code expired", perrors.ErrInvalidState)
  }

  if _, err := s.promos.RecordRedemption(ctx, nil, userID, promo.ID); err != nil {
    return nil, err
  }

  if promo.DiscountType == types.DiscountTypeCourses {
    return s.ChangeBalance(ctx, userID, types.BalanceActionDeposit, promo.Amount)
  }
  return s.balances.GetByUserID(ctx, nil, userID)
}
