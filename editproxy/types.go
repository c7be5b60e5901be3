package editproxy

// Request is the JSON body posted by the canvas page.
type Request struct {
	Image   string `json:"image"`
	Command string `json:"command"`
}

// Response carries at most one image and one text fragment. Absent values
// encode as JSON null.
type Response struct {
	EditedImage  *string `json:"editedImage"`
	ResponseText *string `json:"responseText"`
}

// Result is what Edit returns: the response plus where the kept image was
// saved, when the variant persists images.
type Result struct {
	Response
	SavedFilePath *string
}

// persistedResponse is the body shape of variants that save images.
type persistedResponse struct {
	Response
	SavedFilePath *string `json:"savedFilePath"`
}

// Variant selects validation, extraction and persistence behaviour for one
// endpoint.
type Variant struct {
	// Name labels the endpoint in logs and the audit trail.
	Name string

	// RequireImage rejects requests without an image.
	RequireImage bool

	// KeepFirstMatch keeps the first text and image parts of the reply.
	// When false the last part of each kind wins.
	KeepFirstMatch bool

	// PersistLocally writes every returned image under the save directory
	// and reports savedFilePath.
	PersistLocally bool

	// FailureMessage is the error field of a 500 response.
	FailureMessage string

	// ErrorDetails adds the underlying error message as "details" on 500.
	ErrorDetails bool
}

// VariantEdit is POST /edit: image required, images saved locally.
var VariantEdit = Variant{
	Name:           "edit",
	RequireImage:   true,
	PersistLocally: true,
	FailureMessage: "Failed to process image",
}

// VariantEdit2 is POST /edit2: image optional, error details exposed.
var VariantEdit2 = Variant{
	Name:           "edit2",
	FailureMessage: "Failed to generate image",
	ErrorDetails:   true,
}
