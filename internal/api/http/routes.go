package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/sunny-forecast/internal/geocode"
	"github.com/i474232898/sunny-forecast/internal/mapview"
	"github.com/i474232898/sunny-forecast/internal/registry"
	"github.com/i474232898/sunny-forecast/internal/store"
	"github.com/i474232898/sunny-forecast/internal/weather"
)

var validate = validator.New()

// Registry is the subset of *registry.Registry the API drives.
type Registry interface {
	Sorted() []registry.Location
	Get(id string) (registry.Location, error)
	Add(ctx context.Context, at weather.Coordinates, name string) (registry.Location, error)
	Search(ctx context.Context, query string) (registry.Location, error)
	AddPolygon(ctx context.Context, vertices []weather.Coordinates) ([]registry.Location, error)
	Clear()
	TargetInstant() time.Time
	SetTargetInstant(t time.Time)
	OnCredentialChange(ctx context.Context, providerID, credential string) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Registry    Registry
	Providers   []weather.Provider
	Credentials interface {
		All(ctx context.Context) (map[string]string, error)
	}
	History interface {
		All(locationID string) ([]weather.HistoryRecord, error)
		Range(locationID string, from, to time.Time) ([]weather.HistoryRecord, error)
	}
	Markers interface {
		Markers() []mapview.Marker
	}
	// Location is the zone for {date, time} target requests. Defaults to time.Local.
	Location *time.Location
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Location == nil {
		d.Location = time.Local
	}
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"targetInstant": d.Registry.TargetInstant(),
			"locations":     d.Registry.Sorted(),
		})
	})

	v1.Post("/locations", func(c *fiber.Ctx) error {
		var req addLocationRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		loc, err := d.Registry.Add(c.UserContext(), req.toCoordinates(), req.Name)
		if err != nil {
			return registryError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	v1.Post("/locations/search", func(c *fiber.Ctx) error {
		var req searchRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		loc, err := d.Registry.Search(c.UserContext(), req.Query)
		if err != nil {
			return registryError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(loc)
	})

	v1.Post("/locations/polygon", func(c *fiber.Ctx) error {
		var req polygonRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		vertices := make([]weather.Coordinates, len(req.Vertices))
		for i, v := range req.Vertices {
			vertices[i] = v.toCoordinates()
		}
		locs, err := d.Registry.AddPolygon(c.UserContext(), vertices)
		if err != nil {
			return registryError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"locations": locs})
	})

	v1.Delete("/locations", func(c *fiber.Ctx) error {
		d.Registry.Clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/locations/:id", func(c *fiber.Ctx) error {
		loc, err := d.Registry.Get(c.Params("id"))
		if err != nil {
			return registryError(err)
		}
		return c.JSON(loc)
	})

	v1.Get("/locations/:id/history", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := d.Registry.Get(id); err != nil {
			return registryError(err)
		}

		var (
			records []weather.HistoryRecord
			err     error
		)
		fromStr, toStr := c.Query("from"), c.Query("to")
		if fromStr == "" && toStr == "" {
			records, err = d.History.All(id)
		} else {
			var q historyQuery
			if err := q.bind(fromStr, toStr); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			if err := validate.Struct(q); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			records, err = d.History.Range(id, q.From, q.To)
		}
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast history for requested location")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast history")
		}

		return c.JSON(fiber.Map{
			"locationId": id,
			"records":    records,
		})
	})

	v1.Get("/target", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"instant": d.Registry.TargetInstant()})
	})

	v1.Put("/target", func(c *fiber.Ctx) error {
		var req targetRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		instant, err := req.instant(d.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		d.Registry.SetTargetInstant(instant)
		return c.JSON(fiber.Map{"instant": instant})
	})

	v1.Get("/providers", func(c *fiber.Ctx) error {
		creds, err := d.Credentials.All(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read credentials")
		}
		out := make([]providerView, 0, len(d.Providers))
		for _, p := range d.Providers {
			out = append(out, providerView{
				ID:                 p.ID(),
				Weight:             p.Weight(),
				RequiresCredential: p.RequiresCredential(),
				HasCredential:      creds[p.ID()] != "",
			})
		}
		return c.JSON(fiber.Map{"providers": out})
	})

	v1.Put("/credentials/:provider", func(c *fiber.Ctx) error {
		id := c.Params("provider")
		if !knownProvider(d.Providers, id) {
			return fiber.NewError(fiber.StatusNotFound, "unknown provider")
		}
		var req credentialRequest
		if err := bindJSON(c, &req); err != nil {
			return err
		}
		if err := d.Registry.OnCredentialChange(c.UserContext(), id, req.Credential); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to store credential")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	v1.Get("/markers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"markers": d.Markers.Markers()})
	})
}

func bindJSON(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// registryError maps registry and geocoding failures to HTTP errors.
func registryError(err error) error {
	switch {
	case errors.Is(err, registry.ErrRegistryFull):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrUnknownID):
		return fiber.NewError(fiber.StatusNotFound, "location not found")
	case errors.Is(err, geocode.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, "location not found; try a major Alpine town like Chamonix, Zermatt or Innsbruck")
	case errors.Is(err, registry.ErrInvalidPolygon):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(fiber.StatusBadGateway, "error searching for location; please try again")
	}
}

func knownProvider(providers []weather.Provider, id string) bool {
	for _, p := range providers {
		if p.ID() == id {
			return true
		}
	}
	return false
}

type providerView struct {
	ID                 string  `json:"id"`
	Weight             float64 `json:"weight"`
	RequiresCredential bool    `json:"requiresCredential"`
	HasCredential      bool    `json:"hasCredential"`
}

// coordinatesRequest uses pointers so a zero coordinate is distinguishable
// from a missing one.
type coordinatesRequest struct {
	Lat *float64 `json:"lat" validate:"required,min=-90,max=90"`
	Lon *float64 `json:"lon" validate:"required,min=-180,max=180"`
}

func (r coordinatesRequest) toCoordinates() weather.Coordinates {
	return weather.Coordinates{Lat: *r.Lat, Lon: *r.Lon}
}

type addLocationRequest struct {
	coordinatesRequest
	Name string `json:"name" validate:"max=200"`
}

type searchRequest struct {
	Query string `json:"query" validate:"required,max=200"`
}

type polygonRequest struct {
	Vertices []coordinatesRequest `json:"vertices" validate:"required,min=3,dive"`
}

type credentialRequest struct {
	Credential string `json:"credential" validate:"max=512"`
}

// targetRequest accepts either an instant (RFC3339 or unix seconds) or a
// local date and time.
type targetRequest struct {
	Instant string `json:"instant" validate:"required_without=Date"`
	Date    string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Time    string `json:"time" validate:"omitempty,datetime=15:04"`
}

func (r targetRequest) instant(loc *time.Location) (time.Time, error) {
	if r.Instant != "" {
		return parseTime(r.Instant)
	}
	clock := r.Time
	if clock == "" {
		clock = "12:00"
	}
	return time.ParseInLocation("2006-01-02 15:04", r.Date+" "+clock, loc)
}

// historyQuery holds query parameters for a history range.
type historyQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(fromStr, toStr string) error {
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required together")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
