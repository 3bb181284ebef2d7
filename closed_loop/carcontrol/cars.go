package carcontrol

// CarModel identifies a fingerprinted vehicle.
type CarModel string

const (
	CarPrius       CarModel = "TOYOTA PRIUS 2017"
	CarRAV4H       CarModel = "TOYOTA RAV4 HYBRID 2017"
	CarRAV4        CarModel = "TOYOTA RAV4 2017"
	CarCorolla     CarModel = "TOYOTA COROLLA 2017"
	CarLexusRXH    CarModel = "LEXUS RX HYBRID 2017"
	CarHighlander  CarModel = "TOYOTA HIGHLANDER 2017"
	CarHighlanderH CarModel = "TOYOTA HIGHLANDER HYBRID 2018"
	CarAvalon      CarModel = "TOYOTA AVALON 2016"
	CarCorollaTSS2 CarModel = "TOYOTA COROLLA TSS2 2019"
	CarRAV4TSS2    CarModel = "TOYOTA RAV4 2019"
)

// TSS2Cars have no separate DSU HUD and must not get the FCW message.
var TSS2Cars = []CarModel{CarCorollaTSS2, CarRAV4TSS2}

func containsCar(cars []CarModel, car CarModel) bool {
	for _, c := range cars {
		if c == car {
			return true
		}
	}
	return false
}
