package shopify

// REST Admin API resources, reduced to the fields this service reads or writes.

type Theme struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"` // main, unpublished, demo, development
}

type Asset struct {
	Key         string `json:"key"`
	PublicURL   string `json:"public_url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	ThemeID     int64  `json:"theme_id"`
	Attachment  string `json:"attachment,omitempty"`
}

type Product struct {
	ID     int64          `json:"id"`
	Title  string         `json:"title"`
	Handle string         `json:"handle"`
	Images []ProductImage `json:"images,omitempty"`
}

type ProductImage struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Src       string `json:"src"`
	Alt       string `json:"alt"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type Collection struct {
	ID     int64            `json:"id"`
	Title  string           `json:"title"`
	Handle string           `json:"handle"`
	Image  *CollectionImage `json:"image,omitempty"`
}

type CollectionImage struct {
	Src    string `json:"src"`
	Alt    string `json:"alt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type Blog struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Handle string `json:"handle"`
}

type Article struct {
	ID       int64  `json:"id"`
	BlogID   int64  `json:"blog_id"`
	Title    string `json:"title"`
	BodyHTML string `json:"body_html"`
}

// OnlinePage is an online store page.
type OnlinePage struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Handle   string `json:"handle"`
	BodyHTML string `json:"body_html"`
}

type Metafield struct {
	ID            int64       `json:"id"`
	Namespace     string      `json:"namespace"`
	Key           string      `json:"key"`
	Type          string      `json:"type"`
	Value         interface{} `json:"value"`
	OwnerResource string      `json:"owner_resource"`
	OwnerID       int64       `json:"owner_id"`
}

// Attachment is an image sent inline as base64.
type Attachment struct {
	Attachment string `json:"attachment"`
	Filename   string `json:"filename,omitempty"`
}
