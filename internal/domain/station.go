package domain

// Stations served by the search form, in the order the booking site
// presents them.
var Stations = []string{
	"서울",
	"용산",
	"광명",
	"수서",
	"영등포",
	"수원",
	"평택",
	"천안아산",
	"천안",
	"오송",
	"조치원",
	"대전",
	"서대전",
	"김천구미",
	"구미",
	"동대구",
	"대구",
	"경주",
	"울산(통도사)",
	"포항",
	"경산",
	"밀양",
	"부산",
	"구포",
	"창원중앙",
	"평창",
	"진부(오대산)",
	"강릉",
	"익산",
	"전주",
	"광주송정",
	"목포",
	"순천",
	"청량리",
	"정동진",
}

const (
	DefaultDeparture = "서울"
	DefaultArrival   = "부산"
)

func KnownStation(name string) bool {
	for _, station := range Stations {
		if station == name {
			return true
		}
	}
	return false
}
