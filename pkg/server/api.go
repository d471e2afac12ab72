package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	lterrors "github.com/livetree-dev/livetree/internal/errors"
	"github.com/livetree-dev/livetree/pkg/dsl"
	"github.com/livetree-dev/livetree/pkg/protocol"
	"github.com/livetree-dev/livetree/pkg/registry"
	"github.com/livetree-dev/livetree/pkg/tree"
	"github.com/livetree-dev/livetree/pkg/variable"
)

// apiRoutes mounts the REST façade. Tree mutations run on the handler worker
// so they never interleave with renderer messages.
func (s *Server) apiRoutes(r chi.Router) {
	r.Get("/status", s.apiStatus)

	r.Get("/elements", s.apiListElements)
	r.Post("/elements", s.apiNewElement)
	r.Get("/elements/{id}", s.apiGetElement)
	r.Put("/elements/{id}", s.apiNewElement)
	r.Delete("/elements/{id}", s.apiRemoveElement)
	r.Put("/elements/{id}/prop/{name}", s.apiNewProp)
	r.Put("/elements/{id}/data", s.apiUpdateData)
	r.Put("/elements/{id}/props", s.apiUpdateProps)
	r.Post("/elements/{id}/call/{method}", s.apiCallMethod)

	r.Get("/variables", s.apiListVariables)
	r.Post("/variables", s.apiNewVariable)
	r.Get("/variables/{id}", s.apiGetVariable)
	r.Put("/variables/{id}", s.apiNewVariable)
	r.Post("/variables/{id}", s.apiUpdateVariable)

	r.Get("/functions", s.apiListFunctions)
	r.Post("/functions/{id}", s.apiCallFunction)
}

// Request bodies.
type (
	newElementRequest struct {
		Obj      any            `json:"obj"`
		Params   map[string]any `json:"params"`
		Inputs   map[string]any `json:"inputs"`
		RootID   string         `json:"root_id"`
		ParentID string         `json:"parent_id"`
		NewRoot  bool           `json:"new_root"`
	}

	updateDataRequest struct {
		Data map[string]any `json:"data"`
	}

	updatePropsRequest struct {
		Props    map[string]any `json:"props"`
		Override bool           `json:"override"`
		Path     []string       `json:"path"`
		Value    any            `json:"value"`
	}

	kwargsRequest struct {
		Kwargs map[string]any `json:"kwargs"`
	}

	valueRequest struct {
		Value any `json:"value"`
	}
)

func (s *Server) apiStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "alive",
		"title":       s.page.Title(),
		"connections": s.hub.Len(),
	})
}

func (s *Server) apiListElements(w http.ResponseWriter, r *http.Request) {
	withData := queryBool(r, "include_data")
	withProps := queryBool(r, "include_props")
	reg := s.page.Registry()
	out := make(map[string]any, reg.Len(registry.CategoryElement))
	reg.Each(registry.CategoryElement, func(ent registry.Entity) bool {
		e := ent.(*tree.Element)
		out[e.ID()] = elementInfo(e, withData, withProps)
		return true
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"elements": out})
}

func (s *Server) apiGetElement(w http.ResponseWriter, r *http.Request) {
	e, ok := tree.LookupElement(s.page.Registry(), chi.URLParam(r, "id"))
	if !ok {
		s.writeError(w, notFound("E301", chi.URLParam(r, "id")))
		return
	}
	s.writeJSON(w, http.StatusOK, elementInfo(e, true, true))
}

// apiNewElement creates an element from a kind name or a DSL source. With
// PUT the path id becomes the new element's id.
func (s *Server) apiNewElement(w http.ResponseWriter, r *http.Request) {
	var req newElementRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")

	var created *tree.Element
	err := s.handler.Do(r.Context(), func(ctx context.Context) error {
		n, err := dsl.Parse(req.Obj, dsl.Context{
			Inputs: req.Inputs,
			Kinds:  tree.Resolver(s.page.Registry()),
		})
		if err != nil {
			return err
		}
		for k, v := range req.Params {
			n.Args[k] = v
		}
		if id != "" {
			n.Args[dsl.KeyID] = id
		}
		parent, err := s.resolveParent(req)
		if err != nil {
			return err
		}
		created, err = tree.Build(parent, n)
		if err != nil && req.NewRoot {
			parent.Discard()
		}
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, elementInfo(created, false, false))
}

func (s *Server) resolveParent(req newElementRequest) (*tree.Element, error) {
	reg := s.page.Registry()
	switch {
	case req.NewRoot:
		return s.page.NewRoot()
	case req.ParentID != "":
		if e, ok := tree.LookupElement(reg, req.ParentID); ok {
			return e, nil
		}
		if e, ok := tree.LookupRoot(reg, req.ParentID); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrElementNotFound, req.ParentID)
	case req.RootID != "":
		if e, ok := tree.LookupRoot(reg, req.RootID); ok {
			return e, nil
		}
		return nil, fmt.Errorf("%w: root %s", ErrElementNotFound, req.RootID)
	default:
		return s.page.Root(), nil
	}
}

func (s *Server) apiRemoveElement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.withElement(r, id, func(e *tree.Element) error {
		e.Remove()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "success"})
}

func (s *Server) apiNewProp(w http.ResponseWriter, r *http.Request) {
	id, name := chi.URLParam(r, "id"), chi.URLParam(r, "name")
	var rootID string
	err := s.withElement(r, id, func(e *tree.Element) error {
		root, err := e.NewProp(name)
		if err != nil {
			return err
		}
		rootID = root.ID()
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": rootID, "name": name})
}

func (s *Server) apiUpdateData(w http.ResponseWriter, r *http.Request) {
	var req updateDataRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := s.withElement(r, id, func(e *tree.Element) error {
		e.UpdateData(req.Data)
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "success"})
}

// apiUpdateProps merges props, or sets one nested prop when a path is given.
func (s *Server) apiUpdateProps(w http.ResponseWriter, r *http.Request) {
	var req updatePropsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Props == nil && len(req.Path) == 0 {
		s.writeError(w, lterrors.New("E305").WithDetail("either props or path is required"))
		return
	}
	id := chi.URLParam(r, "id")
	err := s.withElement(r, id, func(e *tree.Element) error {
		if len(req.Path) > 0 {
			e.UpdateProp(req.Path, req.Value)
		} else {
			e.UpdateProps(req.Props, req.Override)
		}
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": "success"})
}

func (s *Server) apiCallMethod(w http.ResponseWriter, r *http.Request) {
	var req kwargsRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, method := chi.URLParam(r, "id"), chi.URLParam(r, "method")
	err := s.withElement(r, id, func(e *tree.Element) error {
		return e.Call(method, tree.Args(req.Kwargs))
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"id": id, "method": method, "status": "success"})
}

func (s *Server) apiListVariables(w http.ResponseWriter, r *http.Request) {
	reg := s.page.Registry()
	out := make(map[string]any, reg.Len(registry.CategoryVariable))
	reg.Each(registry.CategoryVariable, func(ent registry.Entity) bool {
		v := ent.(*variable.Variable)
		out[v.ID()] = variableInfo(v)
		return true
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"variables": out})
}

func (s *Server) apiGetVariable(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ent, ok := s.page.Registry().Lookup(registry.CategoryVariable, id)
	if !ok {
		s.writeError(w, notFound("E302", id))
		return
	}
	s.writeJSON(w, http.StatusOK, variableInfo(ent.(*variable.Variable)))
}

// apiNewVariable creates a variable owned by the page root.
func (s *Server) apiNewVariable(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !s.decode(w, r, &req) {
		return
	}
	var v *variable.Variable
	err := s.handler.Do(r.Context(), func(ctx context.Context) error {
		var err error
		v, err = s.page.Root().NewVariable(req.Value, chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, variableInfo(v))
}

// apiUpdateVariable queues an updateVariable message exactly as a renderer
// would send it.
func (s *Server) apiUpdateVariable(w http.ResponseWriter, r *http.Request) {
	var req valueRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := s.page.Registry().Lookup(registry.CategoryVariable, id); !ok {
		s.writeError(w, notFound("E302", id))
		return
	}
	s.queue(w, &protocol.Message{
		Type:       protocol.MessageUpdateVariable,
		VariableID: id,
		Value:      req.Value,
	})
}

func (s *Server) apiListFunctions(w http.ResponseWriter, r *http.Request) {
	reg := s.page.Registry()
	out := make(map[string]any, reg.Len(registry.CategoryFunction))
	reg.Each(registry.CategoryFunction, func(ent registry.Entity) bool {
		fn := ent.(*registry.Function)
		out[fn.ID] = map[string]any{
			"id":        fn.ID,
			"name":      fn.Name,
			"variables": fn.Inject.Variables,
			"elements":  fn.Inject.Elements,
		}
		return true
	})
	s.writeJSON(w, http.StatusOK, map[string]any{"functions": out})
}

// apiCallFunction queues a call message exactly as a renderer would send it.
func (s *Server) apiCallFunction(w http.ResponseWriter, r *http.Request) {
	var req kwargsRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	if _, ok := s.page.Registry().Lookup(registry.CategoryFunction, id); !ok {
		s.writeError(w, notFound("E303", id))
		return
	}
	s.queue(w, &protocol.Message{
		Type:       protocol.MessageCall,
		FunctionID: id,
		Kwargs:     req.Kwargs,
	})
}

func (s *Server) queue(w http.ResponseWriter, msg *protocol.Message) {
	if err := s.handler.Handle(msg); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{"status": "queued"})
}

// withElement runs fn against the element with id on the handler worker.
func (s *Server) withElement(r *http.Request, id string, fn func(e *tree.Element) error) error {
	return s.handler.Do(r.Context(), func(ctx context.Context) error {
		e, ok := tree.LookupElement(s.page.Registry(), id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrElementNotFound, id)
		}
		return fn(e)
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, s.config.MaxMessageSize+1))
	if err == nil && int64(len(body)) > s.config.MaxMessageSize {
		err = errors.New("body too large")
	}
	if err == nil && len(body) > 0 {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		s.writeError(w, lterrors.New("E305").WithDetail(err.Error()).Wrap(err))
		return false
	}
	return true
}

// writeError maps err to a status code and a coded JSON error body.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, coded := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("api request failed", "error", err)
	}
	body := map[string]any{
		"code":    coded.Code,
		"message": coded.Message,
	}
	if coded.Detail != "" {
		body["detail"] = coded.Detail
	}
	if coded.Suggestion != "" {
		body["suggestion"] = coded.Suggestion
	}
	s.writeJSON(w, status, body)
}

func classify(err error) (int, *lterrors.Error) {
	var coded *lterrors.Error
	switch {
	case errors.Is(err, ErrElementNotFound):
		return http.StatusNotFound, lterrors.New("E301").WithDetail(err.Error())
	case errors.Is(err, ErrVariableNotFound):
		return http.StatusNotFound, lterrors.New("E302").WithDetail(err.Error())
	case errors.Is(err, ErrFunctionNotFound):
		return http.StatusNotFound, lterrors.New("E303").WithDetail(err.Error())
	case errors.Is(err, tree.ErrUnknownMethod):
		return http.StatusNotFound, lterrors.New("E304").WithDetail(err.Error())
	case errors.Is(err, ErrQueueFull):
		return http.StatusServiceUnavailable, lterrors.Newf(lterrors.CategoryRuntime, "message queue full")
	case errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable, lterrors.Newf(lterrors.CategoryRuntime, "page closed")
	case errors.As(err, &coded):
		if coded.Code == "" {
			return http.StatusBadRequest, coded
		}
		if status, ok := codedStatus[coded.Code]; ok {
			return status, coded
		}
		return http.StatusBadRequest, coded
	case errors.Is(err, tree.ErrRemoved), errors.Is(err, tree.ErrDuplicateID), errors.Is(err, tree.ErrDuplicateProp):
		return http.StatusConflict, lterrors.Newf(lterrors.CategoryRuntime, "%v", err)
	case errors.Is(err, tree.ErrInvalidArgs), errors.Is(err, tree.ErrUnknownKind),
		errors.Is(err, tree.ErrChildrenNotAllowed), errors.Is(err, tree.ErrNoParent):
		return http.StatusBadRequest, lterrors.Newf(lterrors.CategoryRuntime, "%v", err)
	default:
		return http.StatusInternalServerError, lterrors.Newf(lterrors.CategoryRuntime, "%v", err)
	}
}

var codedStatus = map[string]int{
	"E301": http.StatusNotFound,
	"E302": http.StatusNotFound,
	"E303": http.StatusNotFound,
	"E304": http.StatusNotFound,
	"E305": http.StatusBadRequest,
}

func notFound(code, id string) *lterrors.Error {
	return lterrors.New(code).WithDetail(id)
}

func elementInfo(e *tree.Element, withData, withProps bool) map[string]any {
	children := e.Children()
	ids := make([]string, len(children))
	for i, c := range children {
		ids[i] = c.ID()
	}
	info := map[string]any{
		"id":           e.ID(),
		"rootId":       e.RootID(),
		"parentId":     e.ParentID(),
		"kind":         e.Kind(),
		"index":        e.Index(),
		"childrenIds":  ids,
		"propChildren": e.PropChildren(),
		"methods":      e.Methods(),
	}
	if withData {
		info["data"] = e.Data()
	}
	if withProps {
		info["props"] = e.Props()
	}
	return info
}

func variableInfo(v *variable.Variable) map[string]any {
	view := v.View()
	return map[string]any{
		"id":      view.ID,
		"value":   view.Value,
		"version": view.Version,
	}
}

func queryBool(r *http.Request, key string) bool {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
