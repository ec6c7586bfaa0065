// internal/domain/provider.go
package domain

import "github.com/shopspring/decimal"

// ChannelPrices holds the independent per-interval price of each channel type.
type ChannelPrices struct {
	Text  decimal.Decimal `db:"price_text" json:"text"`
	Audio decimal.Decimal `db:"price_audio" json:"audio"`
	Video decimal.Decimal `db:"price_video" json:"video"`
}

// Provider is the read-only slice of an astrologer profile the session engine needs.
type Provider struct {
	ID           string        `db:"id" json:"id"`
	Name         string        `db:"display_name" json:"display_name"`
	Prices       ChannelPrices `db:"-" json:"prices"`
	Availability Availability  `db:"availability" json:"availability"`
}

// PriceFor returns the per-interval price for the channel.
// ok is false for an unknown channel or a non-positive price.
func (p *Provider) PriceFor(channel ChannelType) (decimal.Decimal, bool) {
	var price decimal.Decimal
	switch channel {
	case ChannelText:
		price = p.Prices.Text
	case ChannelAudio:
		price = p.Prices.Audio
	case ChannelVideo:
		price = p.Prices.Video
	default:
		return decimal.Zero, false
	}
	if !price.IsPositive() {
		return decimal.Zero, false
	}
	return price, true
}
