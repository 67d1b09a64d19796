package models

// FetchStats aggregates the outcome of one fetch cycle across all
// sources attempted in that cycle.
type FetchStats struct {
	SourcesChecked   int      `json:"sources_checked"`
	SourcesFetched   int      `json:"sources_fetched"`
	ArticlesFound    int      `json:"articles_found"`
	ArticlesNew      int      `json:"articles_new"`
	ArticlesFiltered int      `json:"articles_filtered"`
	ArticlesOld      int      `json:"articles_old"`
	Errors           []string `json:"errors"`
}

// SourceFetchResult counts what happened to one source's candidate
// articles during a save pass.
type SourceFetchResult struct {
	Found     int `json:"found"`
	Saved     int `json:"saved"`
	Filtered  int `json:"filtered"`
	Old       int `json:"old"`
	Duplicate int `json:"duplicate"`
}
