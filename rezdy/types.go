package rezdy

type Category struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	IsVisible bool   `json:"isVisible"`
}

type Product struct {
	ProductCode      string  `json:"productCode"`
	Name             string  `json:"name"`
	ShortDescription string  `json:"shortDescription,omitempty"`
	AdvertisedPrice  float64 `json:"advertisedPrice,omitempty"`
	DurationMinutes  int     `json:"durationMinutes,omitempty"`
	ProductType      string  `json:"productType,omitempty"`
}

type AvailabilitySession struct {
	StartTimeLocal string  `json:"startTimeLocal"`
	EndTimeLocal   string  `json:"endTimeLocal,omitempty"`
	SeatsAvailable int     `json:"seatsAvailable"`
	TotalPrice     float64 `json:"totalPrice,omitempty"`
}

type PickupLocation struct {
	LocationName           string `json:"locationName"`
	Address                string `json:"address,omitempty"`
	MinutesPrior           int    `json:"minutesPrior,omitempty"`
	AdditionalInstructions string `json:"additionalInstructions,omitempty"`
}
