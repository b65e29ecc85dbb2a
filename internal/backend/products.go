package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/mmeshcher/storefront/internal/model"
)

// ProductForm содержит поля товара, передаваемые в JSON-части multipart-запроса.
type ProductForm struct {
	Name        string  `json:"name" validate:"notblank"`
	Description string  `json:"description"`
	Price       float64 `json:"price" validate:"gt=0"`
	Stock       *int    `json:"stock" validate:"required,gte=0"`
}

// Image описывает необязательное изображение товара.
type Image struct {
	Filename string
	Content  io.Reader
}

// Products возвращает каталог товаров.
func (c *Client) Products(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.call(ctx, http.MethodGet, "/api/products", nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// CreateProduct создаёт товар.
func (c *Client) CreateProduct(ctx context.Context, form ProductForm, image *Image) (*model.Product, error) {
	return c.sendProduct(ctx, http.MethodPost, "/api/products", form, image)
}

// UpdateProduct обновляет товар.
func (c *Client) UpdateProduct(ctx context.Context, productID int64, form ProductForm, image *Image) (*model.Product, error) {
	return c.sendProduct(ctx, http.MethodPut, "/api/products/"+id(productID), form, image)
}

// DeleteProduct удаляет товар.
func (c *Client) DeleteProduct(ctx context.Context, productID int64) error {
	return c.call(ctx, http.MethodDelete, "/api/products/"+id(productID), nil, nil)
}

func (c *Client) sendProduct(ctx context.Context, method, path string, form ProductForm, image *Image) (*model.Product, error) {
	payload, err := json.Marshal(form)
	if err != nil {
		return nil, fmt.Errorf("encode product: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("product", string(payload)); err != nil {
		return nil, fmt.Errorf("write product part: %w", err)
	}
	if image != nil && image.Content != nil {
		part, err := mw.CreateFormFile("image", image.Filename)
		if err != nil {
			return nil, fmt.Errorf("create image part: %w", err)
		}
		if _, err := io.Copy(part, image.Content); err != nil {
			return nil, fmt.Errorf("copy image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := c.newRequest(ctx, method, path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	data, err := c.send(req)
	if err != nil {
		return nil, err
	}

	var p model.Product
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
	}
	return &p, nil
}
