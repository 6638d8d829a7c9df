package replace

var maleFirstNames = []string{
	"Aarav", "Vivaan", "Aditya", "Arjun", "Rohan", "Rahul", "Vikram", "Sanjay",
	"Amit", "Karan", "Suresh", "Rajesh", "Anil", "Manoj", "Deepak", "Nikhil",
}

var femaleFirstNames = []string{
	"Priya", "Ananya", "Diya", "Kavya", "Neha", "Pooja", "Sneha", "Anjali",
	"Meera", "Lakshmi", "Sunita", "Radha", "Isha", "Nisha", "Shreya", "Divya",
}

var lastNames = []string{
	"Sharma", "Verma", "Patel", "Gupta", "Singh", "Kumar", "Reddy", "Nair",
	"Iyer", "Mehta", "Joshi", "Rao", "Das", "Chopra", "Banerjee", "Kapoor",
	"Pillai", "Menon",
}

var specialties = []string{"Cardiologist", "Neurologist", "Orthopedist", "Dermatologist", "Pediatrician"}

var emailDomains = []string{"example.com", "example.org", "test.com", "sample.org", "demo.net"}

var shortEmailDomains = []string{"example.com", "example.org", "test.com"}

var licenseStates = []string{"MH", "DL", "KA", "TN", "UP", "GJ", "RJ", "WB", "AP", "MP"}

var drivingStates = []string{"DL", "MH", "KA", "TN", "UP", "GJ", "RJ"}

var insurers = []string{
	"Apollo Munich Health Insurance",
	"HDFC Life Insurance",
	"Max Life Insurance",
	"SBI Life Insurance",
	"ICICI Prudential Life Insurance",
	"Bajaj Allianz Life Insurance",
	"LIC of India",
	"Star Health Insurance",
	"New India Assurance",
}
