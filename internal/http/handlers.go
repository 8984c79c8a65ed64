package httpapi

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
	"storefront/internal/service"
)

const (
	productsPath = "/api/v1/products"
	basketPath   = "/api/v1/basket"
)

type Server struct {
	engine       *gin.Engine
	catalog      *service.CatalogService
	baskets      *service.BasketService
	checkout     *service.CheckoutService
	log          logrus.FieldLogger
	secureCookie bool
}

func NewServer(catalog *service.CatalogService, baskets *service.BasketService, checkout *service.CheckoutService, log logrus.FieldLogger, secureCookie bool) *Server {
	r := gin.New()
	r.Use(logging.Middleware(log), gin.Recovery())
	s := &Server{
		engine:       r,
		catalog:      catalog,
		baskets:      baskets,
		checkout:     checkout,
		log:          log,
		secureCookie: secureCookie,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	{
		products := v1.Group("/products")
		products.GET("", s.listProducts)
		products.POST("", s.createProduct)
		products.GET(":id", s.getProduct)
		products.PUT(":id", s.updateProduct)
		products.DELETE(":id", s.deleteProduct)

		basket := v1.Group("/basket")
		basket.GET("", s.getBasket)
		basket.POST("/items/:product_id", s.addToBasket)
		basket.DELETE("/items/:product_id", s.removeFromBasket)

		orders := v1.Group("/orders")
		orders.POST("", s.placeOrder)
		orders.GET("", s.listOrders)
		orders.GET(":id", s.getOrder)
	}
}

// Product handlers
type productReq struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Category    domain.Category `json:"category"`
	Residue     int64           `json:"residue"`
	Price       decimal.Decimal `json:"price"`
}

func (r productReq) toDomain(id int64) domain.Product {
	return domain.Product{
		ID:          id,
		Title:       r.Title,
		Description: r.Description,
		Category:    r.Category,
		Residue:     r.Residue,
		Price:       r.Price,
	}
}

// @Summary List products
// @Tags products
// @Produce json
// @Param search query string false "Title contains (case-insensitive)"
// @Param page query int false "Page number, starting at 1"
// @Success 200 {object} service.ProductPage
// @Failure 404 {object} map[string]string
// @Router /products [get]
func (s *Server) listProducts(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid page"})
		return
	}
	res, err := s.catalog.List(c, c.Query("search"), page)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Param input body productReq true "Product"
// @Success 201 {object} domain.Product
// @Failure 400 {object} map[string]any
// @Router /products [post]
func (s *Server) createProduct(c *gin.Context) {
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.catalog.Create(c, req.toDomain(0))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// @Summary Get product by id
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} domain.Product
// @Failure 404 {object} map[string]string
// @Router /products/{id} [get]
func (s *Server) getProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := s.catalog.GetByID(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Update product
// @Tags products
// @Accept json
// @Produce json
// @Param id path int true "Product ID"
// @Param input body productReq true "Product"
// @Success 200 {object} domain.Product
// @Failure 400 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /products/{id} [put]
func (s *Server) updateProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req productReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	p, err := s.catalog.Update(c, req.toDomain(id))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// @Summary Delete product
// @Tags products
// @Param id path int true "Product ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /products/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.catalog.Delete(c, id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Basket handlers

// @Summary Basket contents and total
// @Tags basket
// @Produce json
// @Param X-Cart-ID header string false "Cart UUID (falls back to the cart_id cookie)"
// @Success 200 {object} domain.Basket
// @Router /basket [get]
func (s *Server) getBasket(c *gin.Context) {
	b, err := s.baskets.Get(c, s.cartID(c))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// @Summary Add one unit of a product to the basket
// @Tags basket
// @Param product_id path int true "Product ID"
// @Param X-Cart-ID header string false "Cart UUID"
// @Success 302
// @Failure 404 {object} map[string]string
// @Router /basket/items/{product_id} [post]
func (s *Server) addToBasket(c *gin.Context) {
	id, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	if err := s.baskets.Add(c, s.cartID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, sameHostReferer(c, basketPath))
}

// sameHostReferer возвращает путь из Referer, если он ведёт на этот же хост
func sameHostReferer(c *gin.Context, fallback string) string {
	ref, err := url.Parse(c.GetHeader("Referer"))
	if err != nil || ref.Path == "" {
		return fallback
	}
	if ref.Host != "" && ref.Host != c.Request.Host {
		return fallback
	}
	if ref.Host == "" && (ref.Scheme != "" || ref.Path[0] != '/') {
		return fallback
	}
	return ref.RequestURI()
}

// @Summary Remove one unit of a product from the basket
// @Tags basket
// @Param product_id path int true "Product ID"
// @Param X-Cart-ID header string false "Cart UUID"
// @Success 302
// @Failure 404 {object} map[string]string
// @Router /basket/items/{product_id} [delete]
func (s *Server) removeFromBasket(c *gin.Context) {
	id, ok := pathID(c, "product_id")
	if !ok {
		return
	}
	if err := s.baskets.Remove(c, s.cartID(c), id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, basketPath)
}

// Order handlers

// @Summary Place an order from the basket
// @Tags orders
// @Accept json,x-www-form-urlencoded
// @Param input body domain.CustomerInfo true "Customer"
// @Param X-Cart-ID header string false "Cart UUID"
// @Success 302
// @Header 302 {string} X-Order-ID "Created order ID"
// @Failure 400 {object} map[string]any
// @Router /orders [post]
func (s *Server) placeOrder(c *gin.Context) {
	var info domain.CustomerInfo
	if err := c.ShouldBind(&info); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	o, err := s.checkout.PlaceOrder(c, s.cartID(c), info)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("X-Order-ID", strconv.FormatInt(o.ID, 10))
	c.Redirect(http.StatusFound, productsPath)
}

// @Summary List orders, newest first
// @Tags orders
// @Produce json
// @Success 200 {array} domain.Order
// @Router /orders [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.checkout.ListOrders(c)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id
// @Tags orders
// @Produce json
// @Param id path int true "Order ID"
// @Success 200 {object} domain.Order
// @Failure 404 {object} map[string]string
// @Router /orders/{id} [get]
func (s *Server) getOrder(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := s.checkout.GetOrder(c, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// pathID parses a positive id; anything else is a 404 like a missing row
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return 0, false
	}
	return id, true
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrProductInUse):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondError(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(status, gin.H{"error": "validation failed", "fields": verr.Fields})
	case status == http.StatusInternalServerError:
		s.log.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		_ = c.Error(err)
		c.JSON(status, gin.H{"error": "internal error"})
	default:
		c.JSON(status, gin.H{"error": err.Error()})
	}
}
