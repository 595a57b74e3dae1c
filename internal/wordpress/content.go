package wordpress

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultTitle        = "New Post"
	placeholderTitle    = "Uploading…"
	placeholderContent  = "Uploading media…"
	galleryColumns      = 2
	paragraphSeparator  = "\n\n"
	blockSeparator      = "\n\n"
	galleryItemIndent   = "\n    "
	galleryItemJoin     = "\n"
	galleryOpenTemplate = `<!-- wp:gallery {"columns":%d,"linkTo":"none","ids":[%s]} -->` + "\n" +
		`<figure class="wp-block-gallery has-nested-images columns-%d is-cropped">` + galleryItemIndent
)

// PostTitle returns the trimmed first line of text, or "New Post".
func PostTitle(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	if first = strings.TrimSpace(first); first != "" {
		return first
	}
	return defaultTitle
}

// RenderContent builds the Gutenberg block markup for a post: one image block
// for a single media item or one gallery block for several, followed by one
// paragraph block per non-blank "\n\n"-separated chunk of text. Text is
// inserted verbatim.
func RenderContent(text string, mediaIDs []int64, mediaURLs []string) string {
	blocks := make([]string, 0, 1+strings.Count(text, paragraphSeparator)+1)

	switch count := min(len(mediaIDs), len(mediaURLs)); {
	case count == 1:
		blocks = append(blocks, imageBlock(mediaIDs[0], mediaURLs[0]))
	case count > 1:
		blocks = append(blocks, galleryBlock(mediaIDs[:count], mediaURLs[:count]))
	}

	for _, paragraph := range strings.Split(text, paragraphSeparator) {
		trimmed := strings.TrimSpace(paragraph)
		if trimmed == "" {
			continue
		}
		blocks = append(blocks, "<!-- wp:paragraph -->\n<p>"+trimmed+"</p>\n<!-- /wp:paragraph -->")
	}
	return strings.Join(blocks, blockSeparator)
}

func imageBlock(id int64, url string) string {
	return fmt.Sprintf(`<!-- wp:image {"id":%d,"sizeSlug":"large"} -->`+"\n"+
		`<figure class="wp-block-image size-large"><img src="%s" alt="" class="wp-image-%d"/></figure>`+"\n"+
		`<!-- /wp:image -->`, id, url, id)
}

func galleryBlock(ids []int64, urls []string) string {
	idList := make([]string, len(ids))
	items := make([]string, len(ids))
	for i, id := range ids {
		idList[i] = strconv.FormatInt(id, 10)
		items[i] = fmt.Sprintf(galleryItemIndent+`<!-- wp:image {"id":%d,"sizeSlug":"large","linkDestination":"none"} -->`+
			galleryItemIndent+`<figure class="wp-block-image size-large"><img src="%s" alt="" class="wp-image-%d"/></figure>`+
			galleryItemIndent+`<!-- /wp:image -->`, id, urls[i], id)
	}
	var b strings.Builder
	fmt.Fprintf(&b, galleryOpenTemplate, galleryColumns, strings.Join(idList, ","), galleryColumns)
	b.WriteString(strings.Join(items, galleryItemJoin))
	b.WriteString("\n</figure>\n<!-- /wp:gallery -->")
	return b.String()
}
