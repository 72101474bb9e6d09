package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/talgya/hexflower/internal/engine"
	apperrors "github.com/talgya/hexflower/internal/errors"
	"github.com/talgya/hexflower/internal/lattice"
	"github.com/talgya/hexflower/internal/persistence"
)

func flowerNotFound(id string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound,
		fmt.Sprintf("flower %q not found", id),
		map[string]string{"flower_id": id})
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.WithMetadata(apperrors.CodeInvalidParameter,
			fmt.Sprintf("%s must be an integer, got %q", name, raw),
			map[string]string{name: raw})
	}
	return n, nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	flowers := s.Engine.List()
	moves := 0
	for _, f := range flowers {
		moves += f.Moves
	}
	minRadius, maxRadius := s.Engine.RadiusRange()

	writeJSON(w, map[string]any{
		"name":       engine.DefaultName,
		"flowers":    len(flowers),
		"moves":      moves,
		"boundary":   s.Engine.Boundary(),
		"min_radius": minRadius,
		"max_radius": maxRadius,
		"streaming":  s.Events != nil,
		"admin":      s.AdminKey != "",
	})
}

func (s *Server) handleKey(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, lattice.Key())
}

func (s *Server) handleKeyRoll(w http.ResponseWriter, r *http.Request) {
	total, err := pathInt(r, "roll")
	if err != nil {
		writeError(w, err)
		return
	}
	dir, err := s.Engine.ResolveDirection(total)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"roll":      total,
		"direction": dir,
		"compass":   dir.Compass(),
		"delta":     dir.Delta(),
	})
}

func (s *Server) handleListFlowers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.List())
}

type createRequest struct {
	Name      string         `json:"name"`
	Radius    *int           `json:"radius"` // Omitted = engine default
	Metadata  map[string]any `json:"metadata"`
	Paint     bool           `json:"paint"`
	PaintSeed *int64         `json:"paint_seed"` // Implies paint
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	opts := engine.CreateOptions{Name: req.Name, Radius: s.Engine.DefaultRadius(), Metadata: req.Metadata}
	if req.Radius != nil {
		opts.Radius = *req.Radius
	}
	if req.Paint || req.PaintSeed != nil {
		cfg := lattice.DefaultPaintConfig()
		if req.PaintSeed != nil {
			cfg.Seed = *req.PaintSeed
		} else {
			cfg.Seed = lattice.NewPaintSeed()
		}
		opts.Paint = &cfg
	}

	lat, err := s.Engine.Create(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, engine.NewSnapshot(lat))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidParameter, "read request body", err))
		return
	}
	lat, err := s.Engine.ImportSnapshot(r.Context(), data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, engine.NewSnapshot(lat))
}

func (s *Server) handleGetFlower(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap, ok := s.Engine.ExportSnapshot(id)
	if !ok {
		writeError(w, flowerNotFound(id))
		return
	}
	writeJSON(w, snap)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	cell, ok := s.Engine.CurrentCell(id)
	if !ok {
		writeError(w, flowerNotFound(id))
		return
	}
	writeJSON(w, cell)
}

type navigateRequest struct {
	Roll *int `json:"roll"`
}

func (s *Server) handleNavigate(w http.ResponseWriter, r *http.Request) {
	var req navigateRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	id := r.PathValue("id")
	var (
		res engine.NavigationResult
		err error
	)
	if req.Roll != nil {
		res, err = s.Engine.NavigateTotal(r.Context(), id, *req.Roll)
	} else {
		res, err = s.Engine.Navigate(r.Context(), id)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	total, err := pathInt(r, "roll")
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.Engine.Preview(r.PathValue("id"), total)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleSetCell(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	q, err := pathInt(r, "q")
	if err != nil {
		writeError(w, err)
		return
	}
	rr, err := pathInt(r, "r")
	if err != nil {
		writeError(w, err)
		return
	}
	coord := lattice.Coord{Q: q, R: rr}

	var payload lattice.Payload
	if err := decodeBody(w, r, &payload); err != nil {
		writeError(w, err)
		return
	}

	// Unknown flowers and cells are a no-op, not an error.
	body := applyResponse{Applied: s.Engine.SetCellContent(r.Context(), id, coord, payload)}
	if body.Applied {
		if lat, ok := s.Engine.Get(id); ok {
			body.Cell = lat.Get(coord)
		}
	}
	writeJSON(w, body)
}

// applyResponse answers the forgiving mutations. Cell is omitted when
// nothing was applied.
type applyResponse struct {
	Applied bool          `json:"applied"`
	Cell    *lattice.Cell `json:"cell,omitempty"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body := applyResponse{Applied: s.Engine.Reset(r.Context(), id)}
	if body.Applied {
		if cell, ok := s.Engine.CurrentCell(id); ok {
			body.Cell = &cell
		}
	}
	writeJSON(w, body)
}

func (s *Server) handleFlowerEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "event log not available", http.StatusServiceUnavailable)
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			writeError(w, apperrors.New(apperrors.CodeInvalidParameter, "limit must be between 1 and 500"))
			return
		}
		limit = n
	}

	records, err := s.DB.RecentEvents(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if records == nil {
		records = []persistence.EventRecord{}
	}
	writeJSON(w, records)
}

type boundaryRequest struct {
	Policy engine.Policy `json:"policy"`
}

func (s *Server) handleBoundary(w http.ResponseWriter, r *http.Request) {
	var req boundaryRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Policy == "" {
		writeError(w, apperrors.New(apperrors.CodeInvalidParameter, "policy is required"))
		return
	}
	if err := s.Engine.SetBoundary(req.Policy); err != nil {
		writeError(w, err)
		return
	}
	if s.DB != nil {
		if err := s.DB.SaveMeta(r.Context(), persistence.MetaBoundary, string(req.Policy)); err != nil {
			slog.Error("failed to persist boundary policy", "error", err)
		}
	}
	writeJSON(w, map[string]any{"boundary": s.Engine.Boundary()})
}
