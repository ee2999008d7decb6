package edam

import (
	"errors"

	"github.com/jun/gophnote/internal/rpc"
	"github.com/jun/gophnote/internal/wire"
)

type exceptionType int

const (
	userException exceptionType = iota
	systemException
	notFoundException
)

var exceptionSchemas = map[exceptionType]*wire.StructSchema{
	userException:     UserExceptionSchema,
	systemException:   SystemExceptionSchema,
	notFoundException: NotFoundExceptionSchema,
}

var exceptionNames = map[exceptionType]string{
	userException:     "userException",
	systemException:   "systemException",
	notFoundException: "notFoundException",
}

var exceptionDecoders = map[exceptionType]rpc.ExceptionDecoder{
	userException:     DecodeUserException,
	systemException:   DecodeSystemException,
	notFoundException: DecodeNotFoundException,
}

// exception slot ids per method name, used when serving.
var slots = map[string]map[exceptionType]int16{}

func newMethod(name string, authArg int16, args []wire.Field, success *wire.Type, exceptions ...exceptionType) *rpc.Method {
	m := &rpc.Method{
		Name:       name,
		Args:       &wire.StructSchema{Name: name + "_args", Fields: args},
		Result:     &wire.StructSchema{Name: name + "_result"},
		AuthArg:    authArg,
		Exceptions: make(map[int16]rpc.ExceptionDecoder),
	}
	if success != nil {
		m.Result.Fields = append(m.Result.Fields, opt(0, "success", success))
	}
	slots[name] = make(map[exceptionType]int16)
	for i, ex := range exceptions {
		id := int16(i + 1)
		m.Result.Fields = append(m.Result.Fields, opt(id, exceptionNames[ex], wire.StructOf(exceptionSchemas[ex])))
		m.Exceptions[id] = exceptionDecoders[ex]
		slots[name][ex] = id
	}
	return m
}

var authToken = req(1, "authenticationToken", wire.String)

// NoteStore methods.
var (
	GetSyncState = newMethod("getSyncState", 1,
		[]wire.Field{authToken},
		wire.StructOf(SyncStateSchema), userException, systemException)

	ListNotebooks = newMethod("listNotebooks", 1,
		[]wire.Field{authToken},
		wire.ListOf(wire.StructOf(NotebookSchema)), userException, systemException)

	GetNotebook = newMethod("getNotebook", 1,
		[]wire.Field{authToken, req(2, "guid", wire.String)},
		wire.StructOf(NotebookSchema), userException, notFoundException, systemException)

	GetDefaultNotebook = newMethod("getDefaultNotebook", 1,
		[]wire.Field{authToken},
		wire.StructOf(NotebookSchema), userException, systemException)

	CreateNotebook = newMethod("createNotebook", 1,
		[]wire.Field{authToken, req(2, "notebook", wire.StructOf(NotebookSchema))},
		wire.StructOf(NotebookSchema), userException, systemException)

	ListLinkedNotebooks = newMethod("listLinkedNotebooks", 1,
		[]wire.Field{authToken},
		wire.ListOf(wire.StructOf(LinkedNotebookSchema)), userException, notFoundException, systemException)

	FindNotesMetadata = newMethod("findNotesMetadata", 1,
		[]wire.Field{
			authToken,
			req(2, "filter", wire.StructOf(NoteFilterSchema)),
			req(3, "offset", wire.Int32),
			req(4, "maxNotes", wire.Int32),
			req(5, "resultSpec", wire.StructOf(NotesMetadataResultSpecSchema)),
		},
		wire.StructOf(NotesMetadataListSchema), userException, systemException, notFoundException)

	GetNote = newMethod("getNote", 1,
		[]wire.Field{
			authToken,
			req(2, "guid", wire.String),
			req(3, "withContent", wire.Bool),
			req(4, "withResourcesData", wire.Bool),
			req(5, "withResourcesRecognition", wire.Bool),
			req(6, "withResourcesAlternateData", wire.Bool),
		},
		wire.StructOf(NoteSchema), userException, systemException, notFoundException)

	CreateNote = newMethod("createNote", 1,
		[]wire.Field{authToken, req(2, "note", wire.StructOf(NoteSchema))},
		wire.StructOf(NoteSchema), userException, systemException, notFoundException)

	UpdateNote = newMethod("updateNote", 1,
		[]wire.Field{authToken, req(2, "note", wire.StructOf(NoteSchema))},
		wire.StructOf(NoteSchema), userException, systemException, notFoundException)

	DeleteNote = newMethod("deleteNote", 1,
		[]wire.Field{authToken, req(2, "guid", wire.String)},
		wire.Int32, userException, systemException, notFoundException)

	ShareNote = newMethod("shareNote", 1,
		[]wire.Field{authToken, req(2, "guid", wire.String)},
		wire.String, userException, notFoundException, systemException)

	AuthenticateToSharedNotebook = newMethod("authenticateToSharedNotebook", 2,
		[]wire.Field{req(1, "shareKeyOrGlobalId", wire.String), opt(2, "authenticationToken", wire.String)},
		wire.StructOf(AuthenticationResultSchema), userException, notFoundException, systemException)

	GetSharedNotebookByAuth = newMethod("getSharedNotebookByAuth", 1,
		[]wire.Field{authToken},
		wire.StructOf(SharedNotebookSchema), userException, notFoundException, systemException)

	ListTags = newMethod("listTags", 1,
		[]wire.Field{authToken},
		wire.ListOf(wire.StructOf(TagSchema)), userException, systemException)
)

// UserStore methods.
var (
	GetUser = newMethod("getUser", 1,
		[]wire.Field{authToken},
		wire.StructOf(UserSchema), userException, systemException)

	AuthenticateToBusiness = newMethod("authenticateToBusiness", 1,
		[]wire.Field{authToken},
		wire.StructOf(AuthenticationResultSchema), userException, systemException)

	GetNoteStoreURL = newMethod("getNoteStoreUrl", 1,
		[]wire.Field{authToken},
		wire.String, userException, systemException)
)

// NoteStoreMethods and UserStoreMethods list every method of each service.
var (
	NoteStoreMethods = []*rpc.Method{
		GetSyncState, ListNotebooks, GetNotebook, GetDefaultNotebook, CreateNotebook,
		ListLinkedNotebooks, FindNotesMetadata, GetNote, CreateNote, UpdateNote, DeleteNote,
		ShareNote, AuthenticateToSharedNotebook, GetSharedNotebookByAuth, ListTags,
	}
	UserStoreMethods = []*rpc.Method{GetUser, AuthenticateToBusiness, GetNoteStoreURL}
)

func DecodeUserException(s wire.Struct) error {
	return &rpc.ApplicationError{
		Kind:      rpc.KindFromCode(s.I32(1)),
		Code:      s.I32(1),
		Parameter: s.Str(2),
	}
}

func DecodeSystemException(s wire.Struct) error {
	return &rpc.ApplicationError{
		Kind:       rpc.KindFromCode(s.I32(1)),
		Code:       s.I32(1),
		Message:    s.Str(2),
		RetryAfter: s.I32(3),
	}
}

func DecodeNotFoundException(s wire.Struct) error {
	return &rpc.ApplicationError{
		Kind:      rpc.KindNotFound,
		Parameter: s.Str(1),
		Message:   s.Str(2),
	}
}

// ExceptionResult builds the result struct a server returns for err: the
// not-found slot for KindNotFound, the system slot for rate limits and
// server-side failures, and the user slot otherwise. When the method lacks
// the preferred slot the other declared one is used.
func ExceptionResult(m *rpc.Method, err error) (wire.Struct, error) {
	var ae *rpc.ApplicationError
	if !errors.As(err, &ae) {
		return nil, err
	}
	ids := slots[m.Name]

	if ae.Kind == rpc.KindNotFound {
		if id, ok := ids[notFoundException]; ok {
			ex := wire.Struct{}
			ex.SetIf(1, ae.Parameter)
			ex.SetIf(2, ae.Message)
			return wire.Struct{id: ex}, nil
		}
	}

	code := int32(ae.Kind)
	if ae.Kind == rpc.KindNotFound {
		code = int32(rpc.KindUnknown)
	}
	preferSystem := false
	switch ae.Kind {
	case rpc.KindRateLimited, rpc.KindShardUnavailable, rpc.KindInternalError:
		preferSystem = true
	}

	userID, hasUser := ids[userException]
	sysID, hasSys := ids[systemException]
	if (preferSystem || !hasUser) && hasSys {
		ex := wire.Struct{1: code}
		ex.SetIf(2, ae.Message)
		ex.SetIf(3, ae.RetryAfter)
		return wire.Struct{sysID: ex}, nil
	}
	if hasUser {
		ex := wire.Struct{1: code}
		ex.SetIf(2, ae.Parameter)
		return wire.Struct{userID: ex}, nil
	}
	return nil, err
}
