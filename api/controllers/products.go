package controllers

import (
	"net/http"

	"github.com/angelmondragon/orderengine/api/responses"
	"github.com/angelmondragon/orderengine/api/validators"
	product "github.com/angelmondragon/orderengine/internal/products"
	pkgerrors "github.com/angelmondragon/orderengine/pkg/errors"
	"github.com/angelmondragon/orderengine/pkg/logger"
	"github.com/angelmondragon/orderengine/pkg/pagination"
)

// ProductDetail serves one catalog entry, usually from cache.
func ProductDetail(reader product.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product reader unavailable"))
			return
		}

		productID, err := validators.ParsePathID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dto, err := reader.GetProduct(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto)
	}
}

// ProductList serves the available catalog.
func ProductList(reader product.Reader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product reader unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := reader.ListAvailable(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if items == nil {
			items = []product.ProductDTO{}
		}
		responses.WriteSuccess(w, map[string]any{"products": items})
	}
}
