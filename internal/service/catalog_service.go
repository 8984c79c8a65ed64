package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// DefaultPageSize размер страницы каталога
const DefaultPageSize = 5

// ProductPage одна страница каталога
type ProductPage struct {
	Items       []domain.Product `json:"items"`
	Page        int              `json:"page"`
	PageSize    int              `json:"page_size"`
	Total       int              `json:"total"`
	NumPages    int              `json:"num_pages"`
	HasNext     bool             `json:"has_next"`
	HasPrevious bool             `json:"has_previous"`
}

// CatalogService инкапсулирует бизнес-логику вокруг товаров
type CatalogService struct {
	repo     repository.ProductRepository
	validate *validator.Validate
	pageSize int
}

func NewCatalogService(repo repository.ProductRepository, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &CatalogService{repo: repo, validate: newValidator(), pageSize: pageSize}
}

func (s *CatalogService) normalize(p domain.Product) (domain.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Category == "" {
		p.Category = domain.CategoryOther
	}
	if err := validate(s.validate, p); err != nil {
		return p, err
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	cp, err := s.normalize(p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CatalogService) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if id <= 0 {
		return nil, repository.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *CatalogService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID <= 0 {
		return nil, repository.ErrNotFound
	}
	cp, err := s.normalize(p)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return repository.ErrNotFound
	}
	return s.repo.Delete(ctx, id)
}

// List ищет по подстроке названия без учёта регистра и отдаёт страницу page (с 1).
// Пустая первая страница допустима, остальные номера вне диапазона дают ErrNotFound.
func (s *CatalogService) List(ctx context.Context, search string, page int) (*ProductPage, error) {
	if page < 1 {
		return nil, repository.ErrNotFound
	}
	f := repository.ProductFilter{TitleSubstring: strings.TrimSpace(search)}
	total, err := s.repo.Count(ctx, f)
	if err != nil {
		return nil, err
	}
	numPages := (total + s.pageSize - 1) / s.pageSize
	if numPages == 0 {
		numPages = 1
	}
	if page > numPages {
		return nil, repository.ErrNotFound
	}
	f.Limit = s.pageSize
	f.Offset = (page - 1) * s.pageSize
	items, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ProductPage{
		Items:       items,
		Page:        page,
		PageSize:    s.pageSize,
		Total:       total,
		NumPages:    numPages,
		HasNext:     page < numPages,
		HasPrevious: page > 1,
	}, nil
}
