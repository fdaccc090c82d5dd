package store

type Stores struct {
	pastIssues PastIssueStore
	archive    IssueArchive
}

func NewStores(pastIssues PastIssueStore, archive IssueArchive) *Stores {
	return &Stores{pastIssues: pastIssues, archive: archive}
}

func (s *Stores) PastIssues() PastIssueStore {
	return s.pastIssues
}

func (s *Stores) Archive() IssueArchive {
	return s.archive
}
