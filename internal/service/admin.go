package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/internal/media"
	"github.com/utafrali/storefront/internal/repository"
	apperrors "github.com/utafrali/storefront/pkg/errors"
	"github.com/utafrali/storefront/pkg/pagination"
	"github.com/utafrali/storefront/pkg/slug"
)

// CreateProductInput holds the parameters for creating a product.
type CreateProductInput struct {
	Name         string `json:"name" validate:"required,min=2,max=200"`
	Slug         string `json:"slug" validate:"omitempty,slug,max=200"`
	Category     string `json:"category" validate:"required,max=100"`
	Image        string `json:"image" validate:"omitempty,max=1000"`
	Price        int64  `json:"price" validate:"gte=0"`
	Brand        string `json:"brand" validate:"omitempty,max=100"`
	CountInStock int    `json:"count_in_stock" validate:"gte=0"`
	Description  string `json:"description" validate:"omitempty,max=5000"`
}

// UploadImageInput describes an image an admin uploads for a product.
type UploadImageInput struct {
	FileName    string
	ContentType string
	Size        int64
	Data        io.Reader
}

// AdminService handles product intake by admins.
type AdminService struct {
	products  repository.ProductRepository
	storage   media.Storage
	publisher EventPublisher
	maxUpload int64
	logger    *slog.Logger
}

// NewAdminService creates a new admin service. Uploads larger than
// maxUploadBytes are rejected.
func NewAdminService(products repository.ProductRepository, storage media.Storage, publisher EventPublisher, maxUploadBytes int64, logger *slog.Logger) *AdminService {
	return &AdminService{
		products:  products,
		storage:   storage,
		publisher: publisher,
		maxUpload: maxUploadBytes,
		logger:    logger,
	}
}

// ListProducts returns every product page by page.
func (s *AdminService) ListProducts(ctx context.Context, params pagination.Params) (pagination.Result[domain.Product], error) {
	products, total, err := s.products.List(ctx, repository.ProductFilter{Page: params.Page, PerPage: params.PerPage})
	if err != nil {
		return pagination.Result[domain.Product]{}, fmt.Errorf("list products: %w", err)
	}
	return pagination.NewResult(products, total, params), nil
}

// CreateProduct stores a new product on behalf of the admin createdBy. A
// generated slug that is already taken gets a short random suffix.
func (s *AdminService) CreateProduct(ctx context.Context, input CreateProductInput, createdBy string) (*domain.Product, error) {
	if input.Name == "" {
		return nil, apperrors.InvalidInput("product name is required")
	}
	if input.Price < 0 || input.CountInStock < 0 {
		return nil, apperrors.InvalidInput("price and stock must not be negative")
	}

	productSlug := input.Slug
	generated := productSlug == ""
	if generated {
		productSlug = slug.Generate(input.Name)
	}
	if productSlug == "" {
		return nil, apperrors.InvalidInput("product name must contain letters or digits")
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Slug:         productSlug,
		Category:     input.Category,
		Image:        input.Image,
		Price:        input.Price,
		Brand:        input.Brand,
		CountInStock: input.CountInStock,
		Description:  input.Description,
		CreatedBy:    createdBy,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.products.Create(ctx, product)
	if generated && errors.Is(err, apperrors.ErrAlreadyExists) {
		product.Slug = slug.WithSuffix(productSlug, product.ID[:8])
		err = s.products.Create(ctx, product)
	}
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	if err := s.publisher.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
		slog.String("created_by", createdBy),
	)

	return product, nil
}

// UploadImage stores a product image and returns where it is served from.
func (s *AdminService) UploadImage(ctx context.Context, input UploadImageInput) (*media.UploadResult, error) {
	ext, ok := media.AllowedContentTypes[input.ContentType]
	if !ok {
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported content type %q", input.ContentType))
	}
	if input.Size <= 0 {
		return nil, apperrors.InvalidInput("file is empty")
	}
	if input.Size > s.maxUpload {
		return nil, apperrors.InvalidInput(fmt.Sprintf("file exceeds the maximum size of %d bytes", s.maxUpload))
	}
	if input.FileName == "" {
		return nil, apperrors.InvalidInput("file name is required")
	}

	key := path.Join("products", uuid.New().String()+ext)
	result, err := s.storage.Upload(ctx, &media.UploadInput{
		Key:         key,
		ContentType: input.ContentType,
		Size:        input.Size,
		Data:        io.LimitReader(input.Data, input.Size),
	})
	if err != nil {
		return nil, fmt.Errorf("upload image: %w", err)
	}

	s.logger.InfoContext(ctx, "product image uploaded",
		slog.String("key", result.Key),
		slog.String("file_name", input.FileName),
		slog.Int64("size", input.Size),
	)

	return result, nil
}
