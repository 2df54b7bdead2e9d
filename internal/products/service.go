package product

import (
	"context"
	"fmt"

	dbpkg "github.com/angelmondragon/orderengine/pkg/db"
	"github.com/angelmondragon/orderengine/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

// Reader is the catalog read surface shared by the database and cached paths.
type Reader interface {
	GetProduct(ctx context.Context, id int64) (*ProductDTO, error)
	ListAvailable(ctx context.Context, limit int) ([]ProductDTO, error)
}

type productRepository interface {
	FindByID(ctx context.Context, id int64) (*models.Product, error)
	ListAvailable(ctx context.Context, limit int) ([]models.Product, error)
}

type service struct {
	repo productRepository
}

// NewService builds a Reader backed by the repository.
func NewService(repo productRepository) (Reader, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetProduct(ctx context.Context, id int64) (*ProductDTO, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id must be positive")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeProductNotFound, "product %d not found", id)
		}
		return nil, dbpkg.WrapStorage(err, "load product")
	}
	dto := FromModel(product)
	return &dto, nil
}

func (s *service) ListAvailable(ctx context.Context, limit int) ([]ProductDTO, error) {
	products, err := s.repo.ListAvailable(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, dbpkg.WrapStorage(err, "list products")
	}
	out := make([]ProductDTO, 0, len(products))
	for i := range products {
		out = append(out, FromModel(&products[i]))
	}
	return out, nil
}
