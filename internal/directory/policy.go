package directory

// canAdd reports whether a subject with privilege subject may create a user
// holding privilege granted.
func (t Thresholds) canAdd(subject, granted int) bool {
	return subject >= t.Add && subject >= granted
}

// canModify reports whether a subject may set an object's privilege to
// newPrivilege. A subject may not touch a different user that ties or
// outranks it, but may change its own record within its own ceiling.
func (t Thresholds) canModify(self bool, subject, object, newPrivilege int) bool {
	if object >= subject && !self {
		return false
	}
	return subject >= t.Modify && subject >= newPrivilege
}

// canDelete reports whether a subject may remove an object.
func (t Thresholds) canDelete(subject, object int) bool {
	return subject >= t.Delete && subject >= object
}
