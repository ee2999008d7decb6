// Package edam holds the note service schema: struct layouts, method tables
// and typed records with converters to and from wire structs.
package edam

import "github.com/jun/gophnote/internal/wire"

func opt(id int16, name string, t *wire.Type) wire.Field {
	return wire.Field{ID: id, Name: name, Type: t, Optional: true}
}

func req(id int16, name string, t *wire.Type) wire.Field {
	return wire.Field{ID: id, Name: name, Type: t}
}

var DataSchema = &wire.StructSchema{Name: "Data", Fields: []wire.Field{
	opt(1, "bodyHash", wire.Binary),
	opt(2, "size", wire.Int32),
	opt(3, "body", wire.Binary),
}}

var ResourceAttributesSchema = &wire.StructSchema{Name: "ResourceAttributes", Fields: []wire.Field{
	opt(1, "sourceURL", wire.String),
	opt(10, "fileName", wire.String),
	opt(11, "attachment", wire.Bool),
}}

var ResourceSchema = &wire.StructSchema{Name: "Resource", Fields: []wire.Field{
	opt(1, "guid", wire.String),
	opt(2, "noteGuid", wire.String),
	opt(3, "data", wire.StructOf(DataSchema)),
	opt(4, "mime", wire.String),
	opt(5, "width", wire.Int16),
	opt(6, "height", wire.Int16),
	opt(11, "attributes", wire.StructOf(ResourceAttributesSchema)),
}}

var NoteAttributesSchema = &wire.StructSchema{Name: "NoteAttributes", Fields: []wire.Field{
	opt(1, "subjectDate", wire.Int64),
	opt(14, "source", wire.String),
	opt(15, "sourceURL", wire.String),
	opt(16, "sourceApplication", wire.String),
	opt(18, "reminderOrder", wire.Int64),
	opt(19, "reminderDoneTime", wire.Int64),
	opt(20, "reminderTime", wire.Int64),
	opt(22, "contentClass", wire.String),
}}

var NoteSchema = &wire.StructSchema{Name: "Note", Fields: []wire.Field{
	opt(1, "guid", wire.String),
	opt(2, "title", wire.String),
	opt(3, "content", wire.String),
	opt(4, "contentHash", wire.Binary),
	opt(5, "contentLength", wire.Int32),
	opt(6, "created", wire.Int64),
	opt(7, "updated", wire.Int64),
	opt(8, "deleted", wire.Int64),
	opt(9, "active", wire.Bool),
	opt(10, "updateSequenceNum", wire.Int32),
	opt(11, "notebookGuid", wire.String),
	opt(12, "tagGuids", wire.ListOf(wire.String)),
	opt(13, "resources", wire.ListOf(wire.StructOf(ResourceSchema))),
	opt(14, "attributes", wire.StructOf(NoteAttributesSchema)),
	opt(15, "tagNames", wire.ListOf(wire.String)),
}}

var BusinessNotebookSchema = &wire.StructSchema{Name: "BusinessNotebook", Fields: []wire.Field{
	opt(1, "notebookDescription", wire.String),
	opt(2, "privilege", wire.Int32),
	opt(3, "recommended", wire.Bool),
}}

var NotebookRestrictionsSchema = &wire.StructSchema{Name: "NotebookRestrictions", Fields: []wire.Field{
	opt(1, "noReadNotes", wire.Bool),
	opt(2, "noCreateNotes", wire.Bool),
	opt(3, "noUpdateNotes", wire.Bool),
	opt(4, "noExpungeNotes", wire.Bool),
	opt(5, "noShareNotes", wire.Bool),
}}

var SharedNotebookSchema = &wire.StructSchema{Name: "SharedNotebook", Fields: []wire.Field{
	opt(1, "id", wire.Int64),
	opt(2, "userId", wire.Int32),
	opt(3, "notebookGuid", wire.String),
	opt(4, "email", wire.String),
	opt(5, "notebookModifiable", wire.Bool),
	opt(7, "serviceCreated", wire.Int64),
	opt(10, "serviceUpdated", wire.Int64),
	opt(11, "privilege", wire.Int32),
	opt(15, "globalId", wire.String),
	opt(16, "username", wire.String),
}}

var PublishingSchema = &wire.StructSchema{Name: "Publishing", Fields: []wire.Field{
	opt(1, "uri", wire.String),
	opt(4, "publicDescription", wire.String),
}}

var NotebookSchema = &wire.StructSchema{Name: "Notebook", Fields: []wire.Field{
	opt(1, "guid", wire.String),
	opt(2, "name", wire.String),
	opt(5, "updateSequenceNum", wire.Int32),
	opt(6, "defaultNotebook", wire.Bool),
	opt(7, "serviceCreated", wire.Int64),
	opt(8, "serviceUpdated", wire.Int64),
	opt(10, "publishing", wire.StructOf(PublishingSchema)),
	opt(11, "published", wire.Bool),
	opt(12, "stack", wire.String),
	opt(14, "sharedNotebooks", wire.ListOf(wire.StructOf(SharedNotebookSchema))),
	opt(15, "businessNotebook", wire.StructOf(BusinessNotebookSchema)),
	opt(16, "contact", wire.StructOf(UserSchema)),
	opt(17, "restrictions", wire.StructOf(NotebookRestrictionsSchema)),
}}

var LinkedNotebookSchema = &wire.StructSchema{Name: "LinkedNotebook", Fields: []wire.Field{
	opt(2, "shareName", wire.String),
	opt(3, "username", wire.String),
	opt(4, "shardId", wire.String),
	opt(5, "sharedNotebookGlobalId", wire.String),
	opt(6, "uri", wire.String),
	opt(7, "guid", wire.String),
	opt(8, "updateSequenceNum", wire.Int32),
	opt(9, "noteStoreUrl", wire.String),
	opt(10, "webApiUrlPrefix", wire.String),
	opt(11, "stack", wire.String),
	opt(12, "businessId", wire.Int32),
}}

var TagSchema = &wire.StructSchema{Name: "Tag", Fields: []wire.Field{
	opt(1, "guid", wire.String),
	opt(2, "name", wire.String),
	opt(3, "parentGuid", wire.String),
	opt(4, "updateSequenceNum", wire.Int32),
}}

var NoteFilterSchema = &wire.StructSchema{Name: "NoteFilter", Fields: []wire.Field{
	opt(1, "order", wire.Int32),
	opt(2, "ascending", wire.Bool),
	opt(3, "words", wire.String),
	opt(4, "notebookGuid", wire.String),
	opt(5, "tagGuids", wire.ListOf(wire.String)),
	opt(6, "timeZone", wire.String),
	opt(7, "inactive", wire.Bool),
}}

var NotesMetadataResultSpecSchema = &wire.StructSchema{Name: "NotesMetadataResultSpec", Fields: []wire.Field{
	opt(2, "includeTitle", wire.Bool),
	opt(5, "includeContentLength", wire.Bool),
	opt(6, "includeCreated", wire.Bool),
	opt(7, "includeUpdated", wire.Bool),
	opt(10, "includeUpdateSequenceNum", wire.Bool),
	opt(11, "includeNotebookGuid", wire.Bool),
	opt(12, "includeTagGuids", wire.Bool),
	opt(14, "includeAttributes", wire.Bool),
}}

var NoteMetadataSchema = &wire.StructSchema{Name: "NoteMetadata", Fields: []wire.Field{
	req(1, "guid", wire.String),
	opt(2, "title", wire.String),
	opt(5, "contentLength", wire.Int32),
	opt(6, "created", wire.Int64),
	opt(7, "updated", wire.Int64),
	opt(8, "deleted", wire.Int64),
	opt(10, "updateSequenceNum", wire.Int32),
	opt(11, "notebookGuid", wire.String),
	opt(12, "tagGuids", wire.ListOf(wire.String)),
	opt(14, "attributes", wire.StructOf(NoteAttributesSchema)),
}}

var NotesMetadataListSchema = &wire.StructSchema{Name: "NotesMetadataList", Fields: []wire.Field{
	req(1, "startIndex", wire.Int32),
	req(2, "totalNotes", wire.Int32),
	req(3, "notes", wire.ListOf(wire.StructOf(NoteMetadataSchema))),
	opt(4, "stoppedWords", wire.ListOf(wire.String)),
	opt(5, "searchedWords", wire.ListOf(wire.String)),
	opt(6, "updateCount", wire.Int32),
}}

var AccountingSchema = &wire.StructSchema{Name: "Accounting", Fields: []wire.Field{
	opt(1, "uploadLimit", wire.Int64),
	opt(2, "uploadLimitEnd", wire.Int64),
	opt(3, "uploadLimitNextMonth", wire.Int64),
}}

var BusinessUserInfoSchema = &wire.StructSchema{Name: "BusinessUserInfo", Fields: []wire.Field{
	opt(1, "businessId", wire.Int32),
	opt(2, "businessName", wire.String),
	opt(3, "role", wire.Int32),
	opt(4, "email", wire.String),
}}

var UserSchema = &wire.StructSchema{Name: "User", Fields: []wire.Field{
	opt(1, "id", wire.Int32),
	opt(2, "username", wire.String),
	opt(3, "email", wire.String),
	opt(4, "name", wire.String),
	opt(6, "timezone", wire.String),
	opt(7, "privilege", wire.Int32),
	opt(9, "created", wire.Int64),
	opt(10, "updated", wire.Int64),
	opt(13, "active", wire.Bool),
	opt(14, "shardId", wire.String),
	opt(16, "accounting", wire.StructOf(AccountingSchema)),
	opt(18, "businessUserInfo", wire.StructOf(BusinessUserInfoSchema)),
}}

var PublicUserInfoSchema = &wire.StructSchema{Name: "PublicUserInfo", Fields: []wire.Field{
	req(1, "userId", wire.Int32),
	opt(2, "shardId", wire.String),
	opt(4, "username", wire.String),
	opt(5, "webApiUrlPrefix", wire.String),
}}

var AuthenticationResultSchema = &wire.StructSchema{Name: "AuthenticationResult", Fields: []wire.Field{
	req(1, "currentTime", wire.Int64),
	req(2, "authenticationToken", wire.String),
	req(3, "expiration", wire.Int64),
	opt(4, "user", wire.StructOf(UserSchema)),
	opt(5, "publicUserInfo", wire.StructOf(PublicUserInfoSchema)),
	opt(6, "noteStoreUrl", wire.String),
	opt(7, "webApiUrlPrefix", wire.String),
}}

var SyncStateSchema = &wire.StructSchema{Name: "SyncState", Fields: []wire.Field{
	req(1, "currentTime", wire.Int64),
	req(2, "fullSyncBefore", wire.Int64),
	req(3, "updateCount", wire.Int32),
	opt(4, "uploaded", wire.Int64),
}}

var UserExceptionSchema = &wire.StructSchema{Name: "EDAMUserException", Fields: []wire.Field{
	req(1, "errorCode", wire.Int32),
	opt(2, "parameter", wire.String),
}}

var SystemExceptionSchema = &wire.StructSchema{Name: "EDAMSystemException", Fields: []wire.Field{
	req(1, "errorCode", wire.Int32),
	opt(2, "message", wire.String),
	opt(3, "rateLimitDuration", wire.Int32),
}}

var NotFoundExceptionSchema = &wire.StructSchema{Name: "EDAMNotFoundException", Fields: []wire.Field{
	opt(1, "identifier", wire.String),
	opt(2, "key", wire.String),
}}
