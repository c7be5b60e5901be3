package editproxy

import "github.com/hazyhaar/doodle/imagegen"

// pickParts walks the reply parts in order and selects one image and one
// text. With keepFirst the first match of each kind wins, otherwise every
// match overwrites the previous one and the last wins.
func pickParts(parts []imagegen.Part, keepFirst bool) (img *imagegen.Image, text *string) {
	for i := range parts {
		p := parts[i]
		switch {
		case p.IsImage():
			if img == nil || !keepFirst {
				img = p.Image
			}
		case p.Text != "":
			if text == nil || !keepFirst {
				t := p.Text
				text = &t
			}
		}
	}
	return img, text
}
