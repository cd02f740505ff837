package simplehash

import "github.com/cwygoda/nftfolder/internal/domain"

type ownersResponse struct {
	NextCursor *string `json:"next_cursor"`
	NFTs       []nft   `json:"nfts"`
}

type nft struct {
	NFTID           string           `json:"nft_id"`
	Chain           string           `json:"chain"`
	ContractAddress string           `json:"contract_address"`
	TokenID         string           `json:"token_id"`
	Name            *string          `json:"name"`
	ImageURL        *string          `json:"image_url"`
	ImageProperties *imageProperties `json:"image_properties"`
	Collection      *collection      `json:"collection"`
}

type imageProperties struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

type collection struct {
	Name *string `json:"name"`
}

func (n nft) record() domain.Record {
	rec := domain.Record{
		NFTID:           n.NFTID,
		Chain:           n.Chain,
		ContractAddress: n.ContractAddress,
		TokenID:         n.TokenID,
		Name:            deref(n.Name),
		Image:           n.image(),
	}
	if n.Collection != nil {
		rec.CollectionName = deref(n.Collection.Name)
	}
	return rec
}

func (n nft) image() domain.ImageDescriptor {
	switch {
	case n.ImageURL == nil || *n.ImageURL == "":
		return domain.AbsentImage{}
	case n.ImageProperties == nil:
		return domain.URLImage{URL: *n.ImageURL}
	default:
		return domain.DescribedImage{
			URL:      *n.ImageURL,
			Size:     n.ImageProperties.Size,
			MimeType: n.ImageProperties.MimeType,
		}
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
