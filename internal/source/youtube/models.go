package youtube

// Response shapes for the YouTube Data API v3. Engagement counters arrive as
// strings and are parsed during normalization.

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

type searchListResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
	} `json:"items"`
}

type channelListResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemListResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID          string `json:"videoId"`
			VideoPublishedAt string `json:"videoPublishedAt"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoListResponse struct {
	Items []videoResource `json:"items"`
}

type videoResource struct {
	ID      string `json:"id"`
	Snippet struct {
		PublishedAt  string     `json:"publishedAt"`
		ChannelID    string     `json:"channelId"`
		Title        string     `json:"title"`
		ChannelTitle string     `json:"channelTitle"`
		Thumbnails   thumbnails `json:"thumbnails"`
	} `json:"snippet"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
	Statistics struct {
		ViewCount string `json:"viewCount"`
		LikeCount string `json:"likeCount"`
	} `json:"statistics"`
}

type thumbnails struct {
	Default thumbnail `json:"default"`
	Medium  thumbnail `json:"medium"`
	High    thumbnail `json:"high"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// bestThumbnail prefers the highest resolution available.
func (t thumbnails) bestThumbnail() string {
	if t.High.URL != "" {
		return t.High.URL
	}
	if t.Medium.URL != "" {
		return t.Medium.URL
	}
	return t.Default.URL
}
