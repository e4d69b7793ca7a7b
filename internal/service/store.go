package service

import (
	"context"

	"github.com/timmy/shopmedia/internal/domain"
	"github.com/timmy/shopmedia/internal/shopify"
)

// StoreService answers questions about the store itself.
type StoreService struct {
	gateway *shopify.Gateway
}

// NewStoreService creates a new store service.
func NewStoreService(gateway *shopify.Gateway) *StoreService {
	return &StoreService{gateway: gateway}
}

// Info returns the shop.json document.
func (s *StoreService) Info(ctx context.Context, cred domain.Credential) (map[string]interface{}, error) {
	cred, err := domain.NewCredential(cred.Shop, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	return s.gateway.Session(cred).ShopInfo(ctx)
}

// ValidateToken reports whether the token is accepted by the store. A
// rejected token is not an error; transport and other upstream failures are.
func (s *StoreService) ValidateToken(ctx context.Context, cred domain.Credential) (bool, map[string]interface{}, error) {
	info, err := s.Info(ctx, cred)
	if err == nil {
		return true, info, nil
	}
	if shopify.IsUnauthorized(err) || shopify.IsNotFound(err) {
		return false, nil, nil
	}
	return false, nil, err
}
