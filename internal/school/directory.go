package school

// Directory resolves teacher ids to display names.
type Directory map[string]string

// NewDirectory indexes teachers by id.
func NewDirectory(teachers []UserProfile) Directory {
	d := make(Directory, len(teachers))
	for _, t := range teachers {
		d[t.ID] = t.Name
	}
	return d
}

// ResolveName returns the teacher's name and whether the id is known.
func (d Directory) ResolveName(teacherID string) (string, bool) {
	name, ok := d[teacherID]
	return name, ok
}
