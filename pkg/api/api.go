// Package api serves an Engine over HTTP: one-off executions, the root
// Context as a tree of resources, and stored scripts with asynchronous
// executions.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lemonberrylabs/uriel/pkg/codec"
	"github.com/lemonberrylabs/uriel/pkg/expr"
	"github.com/lemonberrylabs/uriel/pkg/log"
	"github.com/lemonberrylabs/uriel/pkg/resource"
	"github.com/lemonberrylabs/uriel/pkg/runtime"
	"github.com/lemonberrylabs/uriel/pkg/store"
	"github.com/lemonberrylabs/uriel/pkg/types"
)

// Server is the HTTP façade of an Engine.
type Server struct {
	app    *fiber.App
	engine *runtime.Engine
	store  *store.Store
	logger log.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // running executions by ID
}

// New creates a server over engine and s.
func New(engine *runtime.Engine, s *store.Store, logger log.Logger) *Server {
	srv := &Server{
		engine:  engine,
		store:   s,
		logger:  logger,
		cancels: make(map[string]context.CancelFunc),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Use(recover.New())

	app.Post("/v1/execute", srv.execute)

	app.Get("/v1/context", srv.getContext)
	app.Get("/v1/context/*", srv.getPath)
	app.Put("/v1/context/*", srv.putPath)
	app.Post("/v1/context/*", srv.postPath)
	app.Delete("/v1/context/*", srv.deletePath)

	app.Post("/v1/scripts", srv.createScript)
	app.Get("/v1/scripts", srv.listScripts)
	app.Get("/v1/scripts/:script", srv.getScript)
	app.Patch("/v1/scripts/:script", srv.updateScript)
	app.Delete("/v1/scripts/:script", srv.deleteScript)

	app.Post("/v1/scripts/:script/executions", srv.createExecution)
	app.Get("/v1/scripts/:script/executions", srv.listExecutions)
	app.Get("/v1/scripts/:script/executions/:execution", srv.getExecution)
	app.Post("/v1/scripts/:script/executions/:execution\\:cancel", srv.cancelExecution)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown cancels running executions and stops the server.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Execution Handlers ---

type executeRequest struct {
	Source string          `json:"source"`
	Args   json.RawMessage `json:"args"`
}

// execute runs a request's source. A JSON body carries source and optional
// args; any other body is the source itself.
func (s *Server) execute(c *fiber.Ctx) error {
	var req executeRequest
	if isJSON(c) {
		if err := c.BodyParser(&req); err != nil {
			return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		}
	} else {
		req.Source = string(c.Body())
	}
	if strings.TrimSpace(req.Source) == "" {
		return apiError(c, fiber.StatusBadRequest, "source is required")
	}

	ctx := c.UserContext()
	var (
		result types.Value
		err    error
	)
	if len(req.Args) > 0 {
		args, aerr := s.readArgs(req.Args)
		if aerr != nil {
			return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid args: %v", aerr))
		}
		result, err = s.engine.RunScript(ctx, req.Source, args)
	} else {
		result, err = s.engine.Execute(ctx, req.Source)
	}
	if err != nil {
		return engineError(c, err)
	}

	if mt := c.Query("mimetype"); mt != "" {
		out, err := s.engine.PrintData(result, mt)
		if err != nil {
			return engineError(c, err)
		}
		c.Set(fiber.HeaderContentType, mt)
		return c.Send(out)
	}
	return c.JSON(fiber.Map{"result": result})
}

// --- Context Handlers ---

func (s *Server) getContext(c *fiber.Ctx) error {
	var vars *types.OrderedMap
	_ = s.engine.Session(c.UserContext(), func(env *expr.Env) error {
		vars = env.Scope().ToMap()
		return nil
	})
	return c.JSON(fiber.Map{"variables": types.NewMap(vars)})
}

func (s *Server) getPath(c *fiber.Ctx) error {
	r, ok := contextResource(c)
	if !ok {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid path %q", c.Params("*")))
	}
	var (
		v     types.Value
		found bool
	)
	err := s.engine.Session(c.UserContext(), func(env *expr.Env) error {
		var err error
		if v, err = r.Get(env); err != nil {
			return err
		}
		// A bare variable bound to null still exists.
		segs := resource.Segments(r.String())
		found = !v.IsNull() || (len(segs) == 1 && env.Scope().Has(segs[0]))
		return nil
	})
	if err != nil {
		return engineError(c, err)
	}
	if !found {
		return apiError(c, fiber.StatusNotFound, fmt.Sprintf("%q is not bound", r.String()))
	}
	return c.JSON(fiber.Map{"value": v})
}

func (s *Server) putPath(c *fiber.Ctx) error {
	r, ok := contextResource(c)
	if !ok {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid path %q", c.Params("*")))
	}
	v, err := s.readBody(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	var stored bool
	err = s.engine.Session(c.UserContext(), func(env *expr.Env) error {
		var err error
		stored, err = r.Put(env, v)
		return err
	})
	if err != nil {
		return engineError(c, err)
	}
	if !stored {
		return apiError(c, fiber.StatusConflict, fmt.Sprintf("cannot put %q", r.String()))
	}
	return c.JSON(fiber.Map{"value": v})
}

func (s *Server) postPath(c *fiber.Ctx) error {
	r, ok := contextResource(c)
	if !ok {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid path %q", c.Params("*")))
	}
	v, err := s.readBody(c)
	if err != nil {
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	var last types.Value
	err = s.engine.Session(c.UserContext(), func(env *expr.Env) error {
		var err error
		last, err = r.Post(env, v)
		return err
	})
	if err != nil {
		return engineError(c, err)
	}
	if last.IsNull() {
		return apiError(c, fiber.StatusConflict, fmt.Sprintf("cannot post to %q", r.String()))
	}
	return c.JSON(fiber.Map{"value": last})
}

func (s *Server) deletePath(c *fiber.Ctx) error {
	r, ok := contextResource(c)
	if !ok {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid path %q", c.Params("*")))
	}
	var deleted bool
	err := s.engine.Session(c.UserContext(), func(env *expr.Env) error {
		var err error
		deleted, err = r.Delete(env)
		return err
	})
	if err != nil {
		return engineError(c, err)
	}
	if !deleted {
		return apiError(c, fiber.StatusNotFound, fmt.Sprintf("%q is not bound", r.String()))
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// --- Script Handlers ---

type scriptRequest struct {
	Source      string `json:"source"`
	Description string `json:"description"`
}

var validScriptID = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

func (s *Server) createScript(c *fiber.Ctx) error {
	id := c.Query("scriptId")
	if !validScriptID.MatchString(id) || len(id) > 128 {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid scriptId %q", id))
	}
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Source == "" {
		return apiError(c, fiber.StatusBadRequest, "source is required")
	}
	if _, err := s.engine.Compile(req.Source); err != nil {
		return engineError(c, err)
	}

	sc, err := s.store.CreateScript(id, req.Source, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) listScripts(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"scripts": s.store.ListScripts()})
}

func (s *Server) getScript(c *fiber.Ctx) error {
	sc, err := s.store.GetScript(c.Params("script"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) updateScript(c *fiber.Ctx) error {
	var req scriptRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Source == "" {
		return apiError(c, fiber.StatusBadRequest, "source is required")
	}
	if _, err := s.engine.Compile(req.Source); err != nil {
		return engineError(c, err)
	}
	sc, err := s.store.UpdateScript(c.Params("script"), req.Source, req.Description)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(sc)
}

func (s *Server) deleteScript(c *fiber.Ctx) error {
	if err := s.store.DeleteScript(c.Params("script")); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{})
}

// --- Script Execution Handlers ---

func (s *Server) createExecution(c *fiber.Ctx) error {
	name := c.Params("script")
	var req executeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		}
	}
	var args []types.Value
	if len(req.Args) > 0 {
		var err error
		if args, err = s.readArgs(req.Args); err != nil {
			return apiError(c, fiber.StatusBadRequest, fmt.Sprintf("invalid args: %v", err))
		}
	}

	sc, err := s.store.GetScript(name)
	if err != nil {
		return storeError(c, err)
	}
	exec, err := s.store.CreateExecution(name, types.NewList(args))
	if err != nil {
		return storeError(c, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[exec.ID] = cancel
	s.mu.Unlock()

	go s.runExecution(ctx, exec.ID, sc.Source, args)

	return c.JSON(exec)
}

func (s *Server) runExecution(ctx context.Context, id, source string, args []types.Value) {
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.cancels[id]; ok {
			cancel()
			delete(s.cancels, id)
		}
		s.mu.Unlock()
	}()

	result, err := s.engine.RunScript(ctx, source, args)
	if err != nil {
		s.logger.Warn("execution failed", slog.String("execution", id), slog.Any("error", err))
		_ = s.store.FailExecution(id, err)
		return
	}
	_ = s.store.CompleteExecution(id, result)
}

func (s *Server) getExecution(c *fiber.Ctx) error {
	exec, err := s.execution(c)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(exec)
}

func (s *Server) listExecutions(c *fiber.Ctx) error {
	name := c.Params("script")
	if _, err := s.store.GetScript(name); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{"executions": s.store.ListExecutions(name)})
}

func (s *Server) cancelExecution(c *fiber.Ctx) error {
	exec, err := s.execution(c)
	if err != nil {
		return storeError(c, err)
	}
	if err := s.store.CancelExecution(exec.ID); err != nil {
		return storeError(c, err)
	}

	s.mu.Lock()
	if cancel, ok := s.cancels[exec.ID]; ok {
		cancel()
	}
	s.mu.Unlock()

	exec, _ = s.store.GetExecution(exec.ID)
	return c.JSON(exec)
}

// execution loads the execution named in the route, checking it belongs to
// the script in the route.
func (s *Server) execution(c *fiber.Ctx) (*store.Execution, error) {
	exec, err := s.store.GetExecution(c.Params("execution"))
	if err != nil {
		return nil, err
	}
	if exec.Script != c.Params("script") {
		return nil, fmt.Errorf("execution %q %w", exec.ID, store.ErrNotFound)
	}
	return exec, nil
}

// --- Directory Loading ---

// LoadDir stores every script file of dir under its lower-cased base name.
// Files that do not compile are skipped with a warning.
func (s *Server) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading scripts directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if mt, ok := codec.ForExtension(name); !ok || mt != codec.Script {
			continue
		}
		id := strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
		if !validScriptID.MatchString(id) || len(id) > 128 {
			s.logger.Warn("skipping script file", slog.String("file", name), slog.String("reason", "invalid script id"))
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			s.logger.Warn("could not read script file", slog.String("file", name), slog.Any("error", err))
			continue
		}
		if _, err := s.engine.Compile(string(data)); err != nil {
			s.logger.Warn("could not compile script file", slog.String("file", name), slog.Any("error", err))
			continue
		}
		if _, err := s.store.CreateScript(id, string(data), ""); err != nil {
			s.logger.Warn("could not store script", slog.String("file", name), slog.Any("error", err))
			continue
		}
		loaded++
		s.logger.Info("loaded script", slog.String("script", id), slog.String("file", name))
	}

	s.logger.Info("loaded scripts", slog.Int("count", loaded), slog.String("dir", dir))
	return nil
}

// --- Helpers ---

func (s *Server) readArgs(raw json.RawMessage) ([]types.Value, error) {
	v, err := s.engine.ReadData(raw, codec.JSON)
	if err != nil {
		return nil, err
	}
	if v.Type() == types.TypeList {
		return v.AsList(), nil
	}
	return []types.Value{v}, nil
}

// readBody decodes the request body by its content type, JSON by default.
func (s *Server) readBody(c *fiber.Ctx) (types.Value, error) {
	mt := codec.Normalize(c.Get(fiber.HeaderContentType))
	if mt == "" {
		mt = codec.JSON
	}
	v, err := s.engine.ReadData(c.Body(), mt)
	if err != nil {
		return types.Null, fmt.Errorf("invalid %s body: %w", mt, err)
	}
	return v, nil
}

func contextResource(c *fiber.Ctx) (*resource.Resource, bool) {
	path := strings.Trim(c.Params("*"), "/")
	if path == "" {
		return nil, false
	}
	r := resource.New(path)
	return r, r.Valid() && r.Scheme() == resource.SchemeNone
}

func isJSON(c *fiber.Ctx) bool {
	return codec.Normalize(c.Get(fiber.HeaderContentType)) == codec.JSON
}

func apiError(c *fiber.Ctx, code int, msg string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": msg,
			"status":  statusName(code),
		},
	})
}

// engineError maps a typed engine error to a response.
func engineError(c *fiber.Ctx, err error) error {
	var exitErr *types.ExitError
	switch {
	case errors.As(err, &exitErr):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": fiber.Map{
				"code":     fiber.StatusUnprocessableEntity,
				"message":  err.Error(),
				"status":   "EXITED",
				"exitCode": exitErr.Code,
			},
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apiError(c, fiber.StatusRequestTimeout, err.Error())
	}
	switch types.KindOf(err) {
	case types.ParseError, types.DispatchError:
		return apiError(c, fiber.StatusBadRequest, err.Error())
	case types.ConversionError:
		return apiError(c, fiber.StatusUnprocessableEntity, err.Error())
	case types.StateError:
		return apiError(c, fiber.StatusConflict, err.Error())
	}
	return apiError(c, fiber.StatusInternalServerError, err.Error())
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrExists):
		return apiError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, store.ErrNotActive):
		return apiError(c, fiber.StatusBadRequest, err.Error())
	}
	return apiError(c, fiber.StatusInternalServerError, err.Error())
}

func statusName(code int) string {
	switch code {
	case fiber.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusConflict:
		return "ALREADY_EXISTS"
	case fiber.StatusRequestTimeout:
		return "CANCELLED"
	case fiber.StatusUnprocessableEntity:
		return "FAILED_PRECONDITION"
	}
	return "INTERNAL"
}
