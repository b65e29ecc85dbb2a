package admin

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront/internal/backend"
	"github.com/mmeshcher/storefront/internal/model"
	"github.com/mmeshcher/storefront/internal/validation"
)

// LowStockThreshold задаёт остаток, ниже которого товар считается заканчивающимся.
const LowStockThreshold = 10

// ProductsAPI описывает методы бэкенда для управления каталогом.
type ProductsAPI interface {
	Products(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, form backend.ProductForm, image *backend.Image) (*model.Product, error)
	UpdateProduct(ctx context.Context, productID int64, form backend.ProductForm, image *backend.Image) (*model.Product, error)
	DeleteProduct(ctx context.Context, productID int64) error
}

// StatsAPI отдаёт статистику заказов.
type StatsAPI interface {
	OrderStats(ctx context.Context) (*model.OrderStats, error)
}

// Products управляет каталогом.
type Products struct {
	api    ProductsAPI
	notes  Notifier
	logger *zap.Logger
}

// NewProducts создаёт сценарий управления каталогом.
func NewProducts(api ProductsAPI, notes Notifier, logger *zap.Logger) *Products {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Products{api: api, notes: notes, logger: logger}
}

// List возвращает каталог.
func (p *Products) List(ctx context.Context) ([]model.Product, error) {
	products, err := p.api.Products(ctx)
	if err != nil {
		p.logger.Warn("failed to load products", zap.Error(err))
		return nil, fmt.Errorf("get products: %w", err)
	}
	return products, nil
}

// Save создаёт товар при productID == 0, иначе обновляет существующий.
func (p *Products) Save(ctx context.Context, productID int64, form backend.ProductForm, image *backend.Image) (*model.Product, error) {
	if err := validation.Struct(form); err != nil {
		if p.notes != nil {
			p.notes.Warning(err.Error())
		}
		return nil, err
	}

	var (
		product *model.Product
		err     error
	)
	if productID == 0 {
		product, err = p.api.CreateProduct(ctx, form, image)
	} else {
		product, err = p.api.UpdateProduct(ctx, productID, form, image)
	}
	if err != nil {
		p.logger.Warn("failed to save product", zap.Int64("product_id", productID), zap.Error(err))
		if p.notes != nil {
			p.notes.Error("Failed to save product")
		}
		return nil, fmt.Errorf("save product: %w", err)
	}

	p.logger.Info("product saved", zap.Int64("product_id", product.ID), zap.String("name", form.Name))
	if p.notes != nil {
		p.notes.Success("Product saved successfully!")
	}
	return product, nil
}

// Delete удаляет товар.
func (p *Products) Delete(ctx context.Context, productID int64) error {
	if err := p.api.DeleteProduct(ctx, productID); err != nil {
		p.logger.Warn("failed to delete product", zap.Int64("product_id", productID), zap.Error(err))
		if p.notes != nil {
			p.notes.Error("Failed to delete product")
		}
		return fmt.Errorf("delete product: %w", err)
	}

	p.logger.Info("product deleted", zap.Int64("product_id", productID))
	if p.notes != nil {
		p.notes.Success("Product deleted successfully!")
	}
	return nil
}

// Overview содержит сводку для главной вкладки панели администратора.
type Overview struct {
	Stats         *model.OrderStats `json:"stats,omitempty"`
	TotalProducts int               `json:"totalProducts"`
	LowStock      int               `json:"lowStockProducts"`
}

// LoadOverview параллельно получает статистику заказов и каталог. Ошибка статистики не
// прерывает загрузку, ошибка каталога возвращается.
func LoadOverview(ctx context.Context, stats StatsAPI, products ProductsAPI, logger *zap.Logger) (*Overview, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		ov      Overview
		catalog []model.Product
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s, err := stats.OrderStats(gctx)
		if err != nil {
			logger.Debug("order stats unavailable", zap.Error(err))
			return nil
		}
		ov.Stats = s
		return nil
	})

	g.Go(func() error {
		list, err := products.Products(gctx)
		if err != nil {
			return fmt.Errorf("get products: %w", err)
		}
		catalog = list
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	ov.TotalProducts = len(catalog)
	ov.LowStock = CountLowStock(catalog)
	return &ov, nil
}

// IsLowStock сообщает, что остаток товара известен и ниже порога.
func IsLowStock(p model.Product) bool {
	return p.Stock != nil && *p.Stock < LowStockThreshold
}

// CountLowStock считает товары с известным остатком ниже порога.
func CountLowStock(products []model.Product) int {
	n := 0
	for _, p := range products {
		if IsLowStock(p) {
			n++
		}
	}
	return n
}
