package tracking

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// 1x1 transparent GIF
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
	0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x2c,
	0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02,
	0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the public tracking endpoints. Open requests always get
// the pixel back, even on bad input, so a mangled URL never breaks an
// email client's image load.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/open/{data}/{sig}", h.HandleOpen)
	r.Get("/click/{data}/{sig}", h.HandleClick)
	return r
}

func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "data")
	sig := chi.URLParam(r, "sig")

	if err := h.svc.HandleOpen(r.Context(), encoded, sig); err != nil {
		if !errors.Is(err, ErrBadPayload) && !errors.Is(err, ErrBadSignature) {
			log.Printf("[Tracking] Open record failed: %v", err)
		}
	}
	h.servePixel(w)
}

func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	encoded := chi.URLParam(r, "data")
	sig := chi.URLParam(r, "sig")

	dest, err := h.svc.HandleClick(r.Context(), encoded, sig)
	if err != nil {
		if dest == "" {
			// Unverifiable payload, nowhere to send the reader.
			http.NotFound(w, r)
			return
		}
		log.Printf("[Tracking] Click record failed: %v", err)
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func (h *Handler) servePixel(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Write(pixelGIF)
}
