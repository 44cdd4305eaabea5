package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core/drill"
)

type boardApi struct {
	board      *drill.Board
	validate   *validator.Validate
	translator ut.Translator
}

func registerBoardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	userCtx echo.MiddlewareFunc,
	board *drill.Board,
	validate *validator.Validate,
	translator ut.Translator,
) {
	api := boardApi{
		board:      board,
		validate:   validate,
		translator: translator,
	}

	bg := g.Group("/board", jwt, userCtx)
	bg.GET("", api.snapshot)
	bg.GET("/stream", api.stream)
	bg.POST("/checkin", api.toggleCheckIn)
	bg.POST("/out", api.toggleOutToday)
	bg.POST("/reload", api.reload)

	// admin endpoints
	bg.POST("/reset", api.reset, adminMiddleware())
	bg.GET("/history", api.history, adminMiddleware())
}

// Handlers

func (api *boardApi) snapshot(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, api.boardResponse())
}

func (api *boardApi) boardResponse() BoardResponse {
	resp := BoardResponse{
		People:  api.board.People(),
		Stats:   api.board.Stats(),
		Classes: api.board.Classes(),
	}
	if err := api.board.Err(); err != nil {
		resp.Error = "failed to load board data; retry"
	}
	return resp
}

func (api *boardApi) toggleCheckIn(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	if err = api.board.ToggleCheckIn(ctx.Request().Context(), data.PersonID, data.Category, usr.Email); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *boardApi) toggleOutToday(ctx echo.Context) error {
	var data ToggleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ToggleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.board.ToggleOutToday(ctx.Request().Context(), data.PersonID, data.Category); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// reload is the retry affordance behind load failures.
func (api *boardApi) reload(ctx echo.Context) error {
	if err := api.board.Load(ctx.Request().Context()); err != nil {
		return errBoardLoad
	}
	return ctx.JSON(http.StatusOK, api.boardResponse())
}

func (api *boardApi) reset(ctx echo.Context) error {
	var data ResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	ok := api.board.ResetAll(ctx.Request().Context(), usr.Email, data.Notes)
	return ctx.JSON(http.StatusOK, ResetResponse{OK: ok})
}

func (api *boardApi) history(ctx echo.Context) error {
	entries, err := api.board.History(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying reset history")
	}
	return ctx.JSON(http.StatusOK, entries)
}

// stream pushes a fresh board snapshot over SSE after every change.
func (api *boardApi) stream(ctx echo.Context) error {
	updates, cancel := api.board.Updates()
	defer cancel()

	resp := ctx.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if err := api.writeBoardEvent(resp); err != nil {
		return nil // client gone
	}

	done := ctx.Request().Context().Done()
	for {
		select {
		case <-done:
			return nil
		case _, ok := <-updates:
			if !ok {
				return nil
			}
			if err := api.writeBoardEvent(resp); err != nil {
				return nil
			}
		}
	}
}

func (api *boardApi) writeBoardEvent(resp *echo.Response) error {
	data, err := json.Marshal(api.boardResponse())
	if err != nil {
		return errors.Wrap(err, "marshalling board event")
	}
	if _, err = fmt.Fprintf(resp, "event: board\ndata: %s\n\n", data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
