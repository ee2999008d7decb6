package edam

import "github.com/jun/gophnote/internal/wire"

// Timestamps are milliseconds since the Unix epoch.

// Sort orders accepted by NoteFilter.Order.
const (
	NoteSortCreated   int32 = 1
	NoteSortUpdated   int32 = 2
	NoteSortRelevance int32 = 3
	NoteSortTitle     int32 = 5
)

// Shared notebook privilege levels.
const (
	PrivilegeReadNotes   int32 = 0
	PrivilegeModifyNotes int32 = 1
	PrivilegeFullAccess  int32 = 2
	PrivilegeBusiness    int32 = 3
)

type Data struct {
	BodyHash []byte
	Size     int32
	Body     []byte
}

func (d *Data) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, d.BodyHash)
	s.SetIf(2, d.Size)
	s.SetIf(3, d.Body)
	return s
}

func DataFromStruct(s wire.Struct) *Data {
	if s == nil {
		return nil
	}
	return &Data{BodyHash: s.Bin(1), Size: s.I32(2), Body: s.Bin(3)}
}

type Resource struct {
	GUID       string
	NoteGUID   string
	Data       *Data
	Mime       string
	Width      int16
	Height     int16
	SourceURL  string
	FileName   string
	Attachment bool
}

func (r *Resource) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, r.GUID)
	s.SetIf(2, r.NoteGUID)
	if r.Data != nil {
		s[3] = r.Data.ToStruct()
	}
	s.SetIf(4, r.Mime)
	if r.Width != 0 {
		s[5] = r.Width
	}
	if r.Height != 0 {
		s[6] = r.Height
	}
	attrs := wire.Struct{}
	attrs.SetIf(1, r.SourceURL)
	attrs.SetIf(10, r.FileName)
	attrs.SetIf(11, r.Attachment)
	if len(attrs) > 0 {
		s[11] = attrs
	}
	return s
}

func ResourceFromStruct(s wire.Struct) *Resource {
	attrs := s.Sub(11)
	return &Resource{
		GUID:       s.Str(1),
		NoteGUID:   s.Str(2),
		Data:       DataFromStruct(s.Sub(3)),
		Mime:       s.Str(4),
		Width:      s.I16(5),
		Height:     s.I16(6),
		SourceURL:  attrs.Str(1),
		FileName:   attrs.Str(10),
		Attachment: attrs.Bool(11),
	}
}

type NoteAttributes struct {
	SubjectDate       int64
	Source            string
	SourceURL         string
	SourceApplication string
	ReminderOrder     int64
	ReminderDoneTime  int64
	ReminderTime      int64
	ContentClass      string
}

func (a *NoteAttributes) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, a.SubjectDate)
	s.SetIf(14, a.Source)
	s.SetIf(15, a.SourceURL)
	s.SetIf(16, a.SourceApplication)
	s.SetIf(18, a.ReminderOrder)
	s.SetIf(19, a.ReminderDoneTime)
	s.SetIf(20, a.ReminderTime)
	s.SetIf(22, a.ContentClass)
	return s
}

func NoteAttributesFromStruct(s wire.Struct) *NoteAttributes {
	if s == nil {
		return nil
	}
	return &NoteAttributes{
		SubjectDate:       s.I64(1),
		Source:            s.Str(14),
		SourceURL:         s.Str(15),
		SourceApplication: s.Str(16),
		ReminderOrder:     s.I64(18),
		ReminderDoneTime:  s.I64(19),
		ReminderTime:      s.I64(20),
		ContentClass:      s.Str(22),
	}
}

type Note struct {
	GUID              string
	Title             string
	Content           string
	ContentHash       []byte
	ContentLength     int32
	Created           int64
	Updated           int64
	Deleted           int64
	Active            bool
	UpdateSequenceNum int32
	NotebookGUID      string
	TagGUIDs          []string
	Resources         []*Resource
	Attributes        *NoteAttributes
	TagNames          []string
}

func (n *Note) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, n.GUID)
	s.SetIf(2, n.Title)
	s.SetIf(3, n.Content)
	s.SetIf(4, n.ContentHash)
	s.SetIf(5, n.ContentLength)
	s.SetIf(6, n.Created)
	s.SetIf(7, n.Updated)
	s.SetIf(8, n.Deleted)
	s.SetIf(9, n.Active)
	s.SetIf(10, n.UpdateSequenceNum)
	s.SetIf(11, n.NotebookGUID)
	s.SetIf(12, stringList(n.TagGUIDs))
	if len(n.Resources) > 0 {
		l := make(wire.List, 0, len(n.Resources))
		for _, r := range n.Resources {
			l = append(l, r.ToStruct())
		}
		s[13] = l
	}
	if n.Attributes != nil {
		s[14] = n.Attributes.ToStruct()
	}
	s.SetIf(15, stringList(n.TagNames))
	return s
}

func NoteFromStruct(s wire.Struct) *Note {
	n := &Note{
		GUID:              s.Str(1),
		Title:             s.Str(2),
		Content:           s.Str(3),
		ContentHash:       s.Bin(4),
		ContentLength:     s.I32(5),
		Created:           s.I64(6),
		Updated:           s.I64(7),
		Deleted:           s.I64(8),
		Active:            s.Bool(9),
		UpdateSequenceNum: s.I32(10),
		NotebookGUID:      s.Str(11),
		TagGUIDs:          stringsOf(s.ListAt(12)),
		Attributes:        NoteAttributesFromStruct(s.Sub(14)),
		TagNames:          stringsOf(s.ListAt(15)),
	}
	for _, v := range s.ListAt(13) {
		if rs, ok := v.(wire.Struct); ok {
			n.Resources = append(n.Resources, ResourceFromStruct(rs))
		}
	}
	return n
}

type BusinessNotebook struct {
	Description string
	Privilege   int32
	Recommended bool
}

type NotebookRestrictions struct {
	NoReadNotes    bool
	NoCreateNotes  bool
	NoUpdateNotes  bool
	NoExpungeNotes bool
	NoShareNotes   bool
}

type Notebook struct {
	GUID              string
	Name              string
	UpdateSequenceNum int32
	DefaultNotebook   bool
	ServiceCreated    int64
	ServiceUpdated    int64
	PublishingURI     string
	Published         bool
	Stack             string
	SharedNotebooks   []*SharedNotebook
	Business          *BusinessNotebook
	Contact           *User
	Restrictions      *NotebookRestrictions
}

func (nb *Notebook) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, nb.GUID)
	s.SetIf(2, nb.Name)
	s.SetIf(5, nb.UpdateSequenceNum)
	s.SetIf(6, nb.DefaultNotebook)
	s.SetIf(7, nb.ServiceCreated)
	s.SetIf(8, nb.ServiceUpdated)
	if nb.PublishingURI != "" {
		s[10] = wire.Struct{1: nb.PublishingURI}
	}
	s.SetIf(11, nb.Published)
	s.SetIf(12, nb.Stack)
	if len(nb.SharedNotebooks) > 0 {
		l := make(wire.List, 0, len(nb.SharedNotebooks))
		for _, sn := range nb.SharedNotebooks {
			l = append(l, sn.ToStruct())
		}
		s[14] = l
	}
	if b := nb.Business; b != nil {
		bs := wire.Struct{2: b.Privilege}
		bs.SetIf(1, b.Description)
		bs.SetIf(3, b.Recommended)
		s[15] = bs
	}
	if nb.Contact != nil {
		s[16] = nb.Contact.ToStruct()
	}
	if r := nb.Restrictions; r != nil {
		rs := wire.Struct{}
		rs.SetIf(1, r.NoReadNotes)
		rs.SetIf(2, r.NoCreateNotes)
		rs.SetIf(3, r.NoUpdateNotes)
		rs.SetIf(4, r.NoExpungeNotes)
		rs.SetIf(5, r.NoShareNotes)
		s[17] = rs
	}
	return s
}

func NotebookFromStruct(s wire.Struct) *Notebook {
	nb := &Notebook{
		GUID:              s.Str(1),
		Name:              s.Str(2),
		UpdateSequenceNum: s.I32(5),
		DefaultNotebook:   s.Bool(6),
		ServiceCreated:    s.I64(7),
		ServiceUpdated:    s.I64(8),
		PublishingURI:     s.Sub(10).Str(1),
		Published:         s.Bool(11),
		Stack:             s.Str(12),
	}
	for _, v := range s.ListAt(14) {
		if sn, ok := v.(wire.Struct); ok {
			nb.SharedNotebooks = append(nb.SharedNotebooks, SharedNotebookFromStruct(sn))
		}
	}
	if bs := s.Sub(15); bs != nil {
		nb.Business = &BusinessNotebook{Description: bs.Str(1), Privilege: bs.I32(2), Recommended: bs.Bool(3)}
	}
	if c := s.Sub(16); c != nil {
		nb.Contact = UserFromStruct(c)
	}
	if rs := s.Sub(17); rs != nil {
		nb.Restrictions = &NotebookRestrictions{
			NoReadNotes:    rs.Bool(1),
			NoCreateNotes:  rs.Bool(2),
			NoUpdateNotes:  rs.Bool(3),
			NoExpungeNotes: rs.Bool(4),
			NoShareNotes:   rs.Bool(5),
		}
	}
	return nb
}

type SharedNotebook struct {
	ID                 int64
	UserID             int32
	NotebookGUID       string
	Email              string
	NotebookModifiable bool
	ServiceCreated     int64
	ServiceUpdated     int64
	Privilege          int32
	GlobalID           string
	Username           string
}

func (sn *SharedNotebook) ToStruct() wire.Struct {
	s := wire.Struct{11: sn.Privilege}
	s.SetIf(1, sn.ID)
	s.SetIf(2, sn.UserID)
	s.SetIf(3, sn.NotebookGUID)
	s.SetIf(4, sn.Email)
	s.SetIf(5, sn.NotebookModifiable)
	s.SetIf(7, sn.ServiceCreated)
	s.SetIf(10, sn.ServiceUpdated)
	s.SetIf(15, sn.GlobalID)
	s.SetIf(16, sn.Username)
	return s
}

func SharedNotebookFromStruct(s wire.Struct) *SharedNotebook {
	return &SharedNotebook{
		ID:                 s.I64(1),
		UserID:             s.I32(2),
		NotebookGUID:       s.Str(3),
		Email:              s.Str(4),
		NotebookModifiable: s.Bool(5),
		ServiceCreated:     s.I64(7),
		ServiceUpdated:     s.I64(10),
		Privilege:          s.I32(11),
		GlobalID:           s.Str(15),
		Username:           s.Str(16),
	}
}

type LinkedNotebook struct {
	ShareName              string
	Username               string
	ShardID                string
	SharedNotebookGlobalID string
	URI                    string
	GUID                   string
	UpdateSequenceNum      int32
	NoteStoreURL           string
	WebAPIURLPrefix        string
	Stack                  string
	BusinessID             int32
}

func (l *LinkedNotebook) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(2, l.ShareName)
	s.SetIf(3, l.Username)
	s.SetIf(4, l.ShardID)
	s.SetIf(5, l.SharedNotebookGlobalID)
	s.SetIf(6, l.URI)
	s.SetIf(7, l.GUID)
	s.SetIf(8, l.UpdateSequenceNum)
	s.SetIf(9, l.NoteStoreURL)
	s.SetIf(10, l.WebAPIURLPrefix)
	s.SetIf(11, l.Stack)
	s.SetIf(12, l.BusinessID)
	return s
}

func LinkedNotebookFromStruct(s wire.Struct) *LinkedNotebook {
	return &LinkedNotebook{
		ShareName:              s.Str(2),
		Username:               s.Str(3),
		ShardID:                s.Str(4),
		SharedNotebookGlobalID: s.Str(5),
		URI:                    s.Str(6),
		GUID:                   s.Str(7),
		UpdateSequenceNum:      s.I32(8),
		NoteStoreURL:           s.Str(9),
		WebAPIURLPrefix:        s.Str(10),
		Stack:                  s.Str(11),
		BusinessID:             s.I32(12),
	}
}

type Tag struct {
	GUID              string
	Name              string
	ParentGUID        string
	UpdateSequenceNum int32
}

func (t *Tag) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, t.GUID)
	s.SetIf(2, t.Name)
	s.SetIf(3, t.ParentGUID)
	s.SetIf(4, t.UpdateSequenceNum)
	return s
}

func TagFromStruct(s wire.Struct) *Tag {
	return &Tag{GUID: s.Str(1), Name: s.Str(2), ParentGUID: s.Str(3), UpdateSequenceNum: s.I32(4)}
}

type NoteFilter struct {
	Order        int32
	Ascending    bool
	Words        string
	NotebookGUID string
	TagGUIDs     []string
	TimeZone     string
	Inactive     bool
}

func (f *NoteFilter) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, f.Order)
	s.SetIf(2, f.Ascending)
	s.SetIf(3, f.Words)
	s.SetIf(4, f.NotebookGUID)
	s.SetIf(5, stringList(f.TagGUIDs))
	s.SetIf(6, f.TimeZone)
	s.SetIf(7, f.Inactive)
	return s
}

func NoteFilterFromStruct(s wire.Struct) *NoteFilter {
	return &NoteFilter{
		Order:        s.I32(1),
		Ascending:    s.Bool(2),
		Words:        s.Str(3),
		NotebookGUID: s.Str(4),
		TagGUIDs:     stringsOf(s.ListAt(5)),
		TimeZone:     s.Str(6),
		Inactive:     s.Bool(7),
	}
}

type NotesMetadataResultSpec struct {
	IncludeTitle             bool
	IncludeContentLength     bool
	IncludeCreated           bool
	IncludeUpdated           bool
	IncludeUpdateSequenceNum bool
	IncludeNotebookGUID      bool
	IncludeTagGUIDs          bool
	IncludeAttributes        bool
}

func (r *NotesMetadataResultSpec) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(2, r.IncludeTitle)
	s.SetIf(5, r.IncludeContentLength)
	s.SetIf(6, r.IncludeCreated)
	s.SetIf(7, r.IncludeUpdated)
	s.SetIf(10, r.IncludeUpdateSequenceNum)
	s.SetIf(11, r.IncludeNotebookGUID)
	s.SetIf(12, r.IncludeTagGUIDs)
	s.SetIf(14, r.IncludeAttributes)
	return s
}

func NotesMetadataResultSpecFromStruct(s wire.Struct) *NotesMetadataResultSpec {
	return &NotesMetadataResultSpec{
		IncludeTitle:             s.Bool(2),
		IncludeContentLength:     s.Bool(5),
		IncludeCreated:           s.Bool(6),
		IncludeUpdated:           s.Bool(7),
		IncludeUpdateSequenceNum: s.Bool(10),
		IncludeNotebookGUID:      s.Bool(11),
		IncludeTagGUIDs:          s.Bool(12),
		IncludeAttributes:        s.Bool(14),
	}
}

type NoteMetadata struct {
	GUID              string
	Title             string
	ContentLength     int32
	Created           int64
	Updated           int64
	Deleted           int64
	UpdateSequenceNum int32
	NotebookGUID      string
	TagGUIDs          []string
	Attributes        *NoteAttributes
}

func (m *NoteMetadata) ToStruct() wire.Struct {
	s := wire.Struct{1: m.GUID}
	s.SetIf(2, m.Title)
	s.SetIf(5, m.ContentLength)
	s.SetIf(6, m.Created)
	s.SetIf(7, m.Updated)
	s.SetIf(8, m.Deleted)
	s.SetIf(10, m.UpdateSequenceNum)
	s.SetIf(11, m.NotebookGUID)
	s.SetIf(12, stringList(m.TagGUIDs))
	if m.Attributes != nil {
		s[14] = m.Attributes.ToStruct()
	}
	return s
}

func NoteMetadataFromStruct(s wire.Struct) *NoteMetadata {
	return &NoteMetadata{
		GUID:              s.Str(1),
		Title:             s.Str(2),
		ContentLength:     s.I32(5),
		Created:           s.I64(6),
		Updated:           s.I64(7),
		Deleted:           s.I64(8),
		UpdateSequenceNum: s.I32(10),
		NotebookGUID:      s.Str(11),
		TagGUIDs:          stringsOf(s.ListAt(12)),
		Attributes:        NoteAttributesFromStruct(s.Sub(14)),
	}
}

type NotesMetadataList struct {
	StartIndex    int32
	TotalNotes    int32
	Notes         []*NoteMetadata
	StoppedWords  []string
	SearchedWords []string
	UpdateCount   int32
}

func (l *NotesMetadataList) ToStruct() wire.Struct {
	notes := make(wire.List, 0, len(l.Notes))
	for _, n := range l.Notes {
		notes = append(notes, n.ToStruct())
	}
	s := wire.Struct{1: l.StartIndex, 2: l.TotalNotes, 3: notes}
	s.SetIf(4, stringList(l.StoppedWords))
	s.SetIf(5, stringList(l.SearchedWords))
	s.SetIf(6, l.UpdateCount)
	return s
}

func NotesMetadataListFromStruct(s wire.Struct) *NotesMetadataList {
	l := &NotesMetadataList{
		StartIndex:    s.I32(1),
		TotalNotes:    s.I32(2),
		StoppedWords:  stringsOf(s.ListAt(4)),
		SearchedWords: stringsOf(s.ListAt(5)),
		UpdateCount:   s.I32(6),
	}
	for _, v := range s.ListAt(3) {
		if ms, ok := v.(wire.Struct); ok {
			l.Notes = append(l.Notes, NoteMetadataFromStruct(ms))
		}
	}
	return l
}

type Accounting struct {
	UploadLimit          int64
	UploadLimitEnd       int64
	UploadLimitNextMonth int64
}

type BusinessUserInfo struct {
	BusinessID   int32
	BusinessName string
	Role         int32
	Email        string
}

type User struct {
	ID               int32
	Username         string
	Email            string
	Name             string
	Timezone         string
	Privilege        int32
	Created          int64
	Updated          int64
	Active           bool
	ShardID          string
	Accounting       *Accounting
	BusinessUserInfo *BusinessUserInfo
}

func (u *User) ToStruct() wire.Struct {
	s := wire.Struct{}
	s.SetIf(1, u.ID)
	s.SetIf(2, u.Username)
	s.SetIf(3, u.Email)
	s.SetIf(4, u.Name)
	s.SetIf(6, u.Timezone)
	s.SetIf(7, u.Privilege)
	s.SetIf(9, u.Created)
	s.SetIf(10, u.Updated)
	s.SetIf(13, u.Active)
	s.SetIf(14, u.ShardID)
	if a := u.Accounting; a != nil {
		as := wire.Struct{}
		as.SetIf(1, a.UploadLimit)
		as.SetIf(2, a.UploadLimitEnd)
		as.SetIf(3, a.UploadLimitNextMonth)
		s[16] = as
	}
	if b := u.BusinessUserInfo; b != nil {
		bs := wire.Struct{}
		bs.SetIf(1, b.BusinessID)
		bs.SetIf(2, b.BusinessName)
		bs.SetIf(3, b.Role)
		bs.SetIf(4, b.Email)
		s[18] = bs
	}
	return s
}

func UserFromStruct(s wire.Struct) *User {
	u := &User{
		ID:        s.I32(1),
		Username:  s.Str(2),
		Email:     s.Str(3),
		Name:      s.Str(4),
		Timezone:  s.Str(6),
		Privilege: s.I32(7),
		Created:   s.I64(9),
		Updated:   s.I64(10),
		Active:    s.Bool(13),
		ShardID:   s.Str(14),
	}
	if as := s.Sub(16); as != nil {
		u.Accounting = &Accounting{UploadLimit: as.I64(1), UploadLimitEnd: as.I64(2), UploadLimitNextMonth: as.I64(3)}
	}
	if bs := s.Sub(18); bs != nil {
		u.BusinessUserInfo = &BusinessUserInfo{BusinessID: bs.I32(1), BusinessName: bs.Str(2), Role: bs.I32(3), Email: bs.Str(4)}
	}
	return u
}

type PublicUserInfo struct {
	UserID          int32
	ShardID         string
	Username        string
	WebAPIURLPrefix string
}

type AuthenticationResult struct {
	CurrentTime         int64
	AuthenticationToken string
	Expiration          int64
	User                *User
	PublicUserInfo      *PublicUserInfo
	NoteStoreURL        string
	WebAPIURLPrefix     string
}

func (a *AuthenticationResult) ToStruct() wire.Struct {
	s := wire.Struct{1: a.CurrentTime, 2: a.AuthenticationToken, 3: a.Expiration}
	if a.User != nil {
		s[4] = a.User.ToStruct()
	}
	if p := a.PublicUserInfo; p != nil {
		ps := wire.Struct{1: p.UserID}
		ps.SetIf(2, p.ShardID)
		ps.SetIf(4, p.Username)
		ps.SetIf(5, p.WebAPIURLPrefix)
		s[5] = ps
	}
	s.SetIf(6, a.NoteStoreURL)
	s.SetIf(7, a.WebAPIURLPrefix)
	return s
}

func AuthenticationResultFromStruct(s wire.Struct) *AuthenticationResult {
	a := &AuthenticationResult{
		CurrentTime:         s.I64(1),
		AuthenticationToken: s.Str(2),
		Expiration:          s.I64(3),
		NoteStoreURL:        s.Str(6),
		WebAPIURLPrefix:     s.Str(7),
	}
	if us := s.Sub(4); us != nil {
		a.User = UserFromStruct(us)
	}
	if ps := s.Sub(5); ps != nil {
		a.PublicUserInfo = &PublicUserInfo{UserID: ps.I32(1), ShardID: ps.Str(2), Username: ps.Str(4), WebAPIURLPrefix: ps.Str(5)}
	}
	return a
}

type SyncState struct {
	CurrentTime    int64
	FullSyncBefore int64
	UpdateCount    int32
	Uploaded       int64
}

func (st *SyncState) ToStruct() wire.Struct {
	s := wire.Struct{1: st.CurrentTime, 2: st.FullSyncBefore, 3: st.UpdateCount}
	s.SetIf(4, st.Uploaded)
	return s
}

func SyncStateFromStruct(s wire.Struct) *SyncState {
	return &SyncState{CurrentTime: s.I64(1), FullSyncBefore: s.I64(2), UpdateCount: s.I32(3), Uploaded: s.I64(4)}
}

func stringList(ss []string) wire.List {
	if len(ss) == 0 {
		return nil
	}
	l := make(wire.List, len(ss))
	for i, s := range ss {
		l[i] = s
	}
	return l
}

func stringsOf(l wire.List) []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, v := range l {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
