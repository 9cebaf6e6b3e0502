package httpapi

import (
	"errors"
	"net/url"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/nexview/radarsync/internal/geo"
	"github.com/nexview/radarsync/internal/prefs"
	"github.com/nexview/radarsync/internal/radar"
	"github.com/nexview/radarsync/internal/source"
	"github.com/nexview/radarsync/internal/view"
)

var validate = validator.New()

// Deps bundles what the handlers need.
type Deps struct {
	Session *view.Session
	Catalog *source.Catalog
	Prefs   *prefs.Store
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "stations": d.Catalog.Len()})
	})

	api := app.Group("/api")

	api.Get("/stations", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"stations": d.Catalog.All()})
	})

	api.Get("/preferences", func(c *fiber.Ctx) error {
		station, firstLaunch := d.Prefs.Preferences()
		return c.JSON(fiber.Map{"defaultStation": station, "firstLaunch": firstLaunch})
	})

	api.Post("/preferences/station", func(c *fiber.Ctx) error {
		var req stationBody
		if err := bind(c, &req); err != nil {
			return err
		}
		if _, ok := d.Catalog.Get(req.Station); !ok {
			return fiber.NewError(fiber.StatusNotFound, "unknown station")
		}
		if err := d.Prefs.SetDefaultStation(req.Station); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save preferences")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/view", func(c *fiber.Ctx) error {
		return c.JSON(d.Session.State())
	})

	api.Delete("/view", func(c *fiber.Ctx) error {
		d.Session.Clear()
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/view/sources/:station", func(c *fiber.Ctx) error {
		field, err := parseField(c)
		if err != nil {
			return err
		}
		if err := d.Session.LoadSource(c.Context(), c.Params("station"), field); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Delete("/view/sources/:station", func(c *fiber.Ctx) error {
		if err := d.Session.RemoveSource(c.Params("station")); err != nil {
			return mapSessionError(err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/view/refresh", func(c *fiber.Ctx) error {
		if err := d.Session.RefreshAll(c.Context()); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Post("/view/animation", func(c *fiber.Ctx) error {
		var req animationBody
		if err := bind(c, &req); err != nil {
			return err
		}
		field, err := radar.ParseField(req.Field)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Session.StartAnimation(c.Context(), req.Stations, field); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Post("/view/forecast", func(c *fiber.Ctx) error {
		var req forecastBody
		if err := bind(c, &req); err != nil {
			return err
		}
		field, err := radar.ParseField(req.Field)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := d.Session.StartForecast(c.Context(), req.Station, field, req.LeadTimes, req.StepMin); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Post("/view/animation/pause", func(c *fiber.Ctx) error {
		d.Session.Player().Pause()
		return c.JSON(d.Session.State())
	})

	api.Post("/view/animation/resume", func(c *fiber.Ctx) error {
		d.Session.Player().Resume()
		return c.JSON(d.Session.State())
	})

	api.Post("/view/animation/seek", func(c *fiber.Ctx) error {
		var req seekBody
		if err := bind(c, &req); err != nil {
			return err
		}
		d.Session.Player().Seek(req.Delta)
		return c.JSON(d.Session.State())
	})

	api.Delete("/view/animation", func(c *fiber.Ctx) error {
		d.Session.StopPlayback()
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Post("/view/shape", func(c *fiber.Ctx) error {
		var req shapeBody
		if err := bind(c, &req); err != nil {
			return err
		}
		shape, err := req.toShape()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		field, err := radar.ParseField(req.Field)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := d.Session.ApplyShape(c.Context(), shape, field); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Delete("/view/shape", func(c *fiber.Ctx) error {
		d.Session.ClearShape()
		return c.SendStatus(fiber.StatusNoContent)
	})

	api.Get("/timeline", func(c *fiber.Ctx) error {
		slots, active, err := d.Session.Timeline(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read timeline")
		}
		return c.JSON(fiber.Map{"slots": slots, "activeSlot": active})
	})

	api.Post("/timeline/:slotKey/load", func(c *fiber.Ctx) error {
		field, err := parseField(c)
		if err != nil {
			return err
		}
		slotKey, err := decodeParam(c, "slotKey")
		if err != nil {
			return err
		}
		if err := d.Session.LoadSlot(c.Context(), slotKey, field); err != nil {
			return mapSessionError(err)
		}
		return c.JSON(d.Session.State())
	})

	api.Delete("/timeline/active", func(c *fiber.Ctx) error {
		d.Session.LeaveSlot()
		return c.SendStatus(fiber.StatusNoContent)
	})
}

// mapSessionError translates engine errors to HTTP statuses.
func mapSessionError(err error) error {
	switch {
	case errors.Is(err, view.ErrUnknownStation),
		errors.Is(err, view.ErrUnknownSlot),
		errors.Is(err, radar.ErrEmptyResult):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case radar.IsAllFailed(err):
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	default:
		var sfe *radar.SourceFetchError
		if errors.As(err, &sfe) {
			return fiber.NewError(fiber.StatusBadGateway, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
}

func bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

// parseField reads the optional field query parameter; empty means
// reflectivity.
func parseField(c *fiber.Ctx) (radar.Field, error) {
	field, err := radar.ParseField(c.Query("field"))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return field, nil
}

// decodeParam returns the raw path parameter with URL escapes decoded;
// slot keys contain a space.
func decodeParam(c *fiber.Ctx, name string) (string, error) {
	v, err := url.QueryUnescape(c.Params(name))
	if err != nil {
		return "", fiber.NewError(fiber.StatusBadRequest, "invalid path parameter")
	}
	return v, nil
}

type stationBody struct {
	Station string `json:"station" validate:"required,alphanum,min=3,max=4"`
}

type animationBody struct {
	Stations []string `json:"stations" validate:"required,min=1,dive,alphanum,min=3,max=4"`
	Field    string   `json:"field" validate:"omitempty,oneof=reflectivity velocity"`
}

type forecastBody struct {
	Station   string `json:"station" validate:"required,alphanum,min=3,max=4"`
	Field     string `json:"field" validate:"omitempty,oneof=reflectivity velocity"`
	LeadTimes int    `json:"lead_times" validate:"omitempty,min=1,max=24"`
	StepMin   int    `json:"step_min" validate:"omitempty,min=1,max=60"`
}

type seekBody struct {
	Delta int `json:"delta" validate:"required"`
}

type shapeBody struct {
	Type  string `json:"type" validate:"required,oneof=circle rect polygon"`
	Field string `json:"field" validate:"omitempty,oneof=reflectivity velocity"`

	Center *geo.Point `json:"center,omitempty"`
	Radius float64    `json:"radiusMeters,omitempty"`

	South float64 `json:"south,omitempty"`
	West  float64 `json:"west,omitempty"`
	North float64 `json:"north,omitempty"`
	East  float64 `json:"east,omitempty"`

	Ring []geo.Point `json:"ring,omitempty"`
}

func (b shapeBody) toShape() (geo.Shape, error) {
	switch b.Type {
	case "circle":
		if b.Center == nil || b.Radius <= 0 {
			return nil, errors.New("circle requires center and a positive radiusMeters")
		}
		return geo.Circle{Center: *b.Center, RadiusMeters: b.Radius}, nil
	case "rect":
		if b.North < b.South || b.East < b.West {
			return nil, errors.New("rect requires south<=north and west<=east")
		}
		return geo.Rect{South: b.South, West: b.West, North: b.North, East: b.East}, nil
	case "polygon":
		if len(b.Ring) < 3 {
			return nil, errors.New("polygon requires at least 3 ring points")
		}
		return geo.Polygon{Ring: b.Ring}, nil
	}
	return nil, errors.New("unknown shape type")
}
