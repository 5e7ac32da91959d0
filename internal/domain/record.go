package domain

// FieldName identifies an extracted article field.
type FieldName string

// Article fields persisted for every record.
const (
	FieldTitle          FieldName = "title"
	FieldAuthorName     FieldName = "author_name"
	FieldAuthorURL      FieldName = "author_url"
	FieldArticleContent FieldName = "article_content"
	FieldPublishedDate  FieldName = "published_date"
)

// ArticleFields lists the persisted fields in output order.
var ArticleFields = []FieldName{
	FieldTitle,
	FieldAuthorName,
	FieldAuthorURL,
	FieldArticleContent,
	FieldPublishedDate,
}

// ArticleRecord is the output unit of a crawl. A nil field means the value was
// not extracted, either because the query matched nothing or the fetch failed.
type ArticleRecord struct {
	ResponseCode   int     `json:"Response Code"`
	ArticleURL     string  `json:"Article URL"`
	Title          *string `json:"Title"`
	AuthorName     *string `json:"Author Name"`
	AuthorURL      *string `json:"Author URL"`
	ArticleContent *string `json:"Article Content"`
	PublishedDate  *string `json:"Published Date"`
}

// NewRecord builds a record from extracted field values. Missing keys stay nil.
func NewRecord(code int, articleURL string, fields map[FieldName]*string) ArticleRecord {
	return ArticleRecord{
		ResponseCode:   code,
		ArticleURL:     articleURL,
		Title:          copyValue(fields[FieldTitle]),
		AuthorName:     copyValue(fields[FieldAuthorName]),
		AuthorURL:      copyValue(fields[FieldAuthorURL]),
		ArticleContent: copyValue(fields[FieldArticleContent]),
		PublishedDate:  copyValue(fields[FieldPublishedDate]),
	}
}

// FailedRecord builds the all-null record produced for a failed article fetch.
func FailedRecord(code int, articleURL string) ArticleRecord {
	return ArticleRecord{ResponseCode: code, ArticleURL: articleURL}
}

// copyValue detaches the record from the caller's map so records stay immutable.
func copyValue(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
